package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jonradoff/arena-server/internal/models"
)

func (s *Store) CreateGame(ctx context.Context, g *models.Game) error {
	g.Status = models.GameStatusActive
	res, err := s.Games().InsertOne(ctx, g)
	if err != nil {
		return err
	}
	g.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *Store) GetGame(ctx context.Context, id primitive.ObjectID) (*models.Game, error) {
	var g models.Game
	err := s.Games().FindOne(ctx, bson.M{"_id": id}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) SetGameSpecificEnvID(ctx context.Context, id primitive.ObjectID, specificEnvID string) error {
	_, err := s.Games().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"specificEnvId": specificEnvID}})
	return err
}

// FinishGame transitions a game active -> finished, guarded so it only
// takes effect from the active state — the mechanism that makes
// finalization idempotent under concurrent callers.
func (s *Store) FinishGame(ctx context.Context, id primitive.ObjectID, reason string) (bool, error) {
	res, err := s.Games().UpdateOne(ctx,
		bson.M{"_id": id, "status": models.GameStatusActive},
		bson.M{"$set": bson.M{"status": models.GameStatusFinished, "reason": reason}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// FailGame transitions a game active -> failed (the Stall pass); no rewards
// are assigned and rating is untouched.
func (s *Store) FailGame(ctx context.Context, id primitive.ObjectID, reason string) (bool, error) {
	res, err := s.Games().UpdateOne(ctx,
		bson.M{"_id": id, "status": models.GameStatusActive},
		bson.M{"$set": bson.M{"status": models.GameStatusFailed, "reason": reason}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *Store) CreatePlayerGame(ctx context.Context, pg *models.PlayerGame) error {
	res, err := s.PlayerGames().InsertOne(ctx, pg)
	if err != nil {
		return err
	}
	pg.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *Store) ListPlayerGames(ctx context.Context, gameID primitive.ObjectID) ([]models.PlayerGame, error) {
	cur, err := s.PlayerGames().Find(ctx, bson.M{"gameId": gameID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.PlayerGame
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	// stable player_id order; matchmaker inserts in order but keep a defensive sort
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].PlayerID < out[j-1].PlayerID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (s *Store) GetPlayerGameByID(ctx context.Context, id primitive.ObjectID) (*models.PlayerGame, error) {
	var pg models.PlayerGame
	err := s.PlayerGames().FindOne(ctx, bson.M{"_id": id}).Decode(&pg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pg, nil
}

func (s *Store) GetPlayerGame(ctx context.Context, gameID primitive.ObjectID, playerID int) (*models.PlayerGame, error) {
	var pg models.PlayerGame
	err := s.PlayerGames().FindOne(ctx, bson.M{"gameId": gameID, "playerId": playerID}).Decode(&pg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pg, nil
}

func (s *Store) FindPlayerGameByParticipant(ctx context.Context, gameID primitive.ObjectID, participantName string) (*models.PlayerGame, error) {
	var pg models.PlayerGame
	err := s.PlayerGames().FindOne(ctx, bson.M{"gameId": gameID, "participantName": participantName}).Decode(&pg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pg, nil
}

// ActivePlayerGameForParticipant finds the in-progress game (if any) a
// participant currently holds a seat in, for one environment — used to
// enforce the invariant that a queued participant is not simultaneously in
// an active game in the same environment.
func (s *Store) ActivePlayerGameForParticipant(ctx context.Context, envID, participantName string) (*models.PlayerGame, *models.Game, error) {
	cur, err := s.PlayerGames().Find(ctx, bson.M{"participantName": participantName, "outcome": nil})
	if err != nil {
		return nil, nil, err
	}
	defer cur.Close(ctx)
	var pgs []models.PlayerGame
	if err := cur.All(ctx, &pgs); err != nil {
		return nil, nil, err
	}
	for _, pg := range pgs {
		g, err := s.GetGame(ctx, pg.GameID)
		if err != nil {
			continue
		}
		if g.EnvID == envID && g.Status == models.GameStatusActive {
			pgCopy := pg
			return &pgCopy, g, nil
		}
	}
	return nil, nil, ErrNotFound
}

// ActivePlayerGameForHuman finds the in-progress seat (if any) held by
// Humanity for one source IP, regardless of environment — human endpoints
// identify their game by IP alone, not (env, name).
func (s *Store) ActivePlayerGameForHuman(ctx context.Context, humanIP string) (*models.PlayerGame, *models.Game, error) {
	cur, err := s.PlayerGames().Find(ctx, bson.M{"isHuman": true, "humanIp": humanIP, "outcome": nil})
	if err != nil {
		return nil, nil, err
	}
	defer cur.Close(ctx)
	var pgs []models.PlayerGame
	if err := cur.All(ctx, &pgs); err != nil {
		return nil, nil, err
	}
	for _, pg := range pgs {
		g, err := s.GetGame(ctx, pg.GameID)
		if err != nil {
			continue
		}
		if g.Status == models.GameStatusActive {
			pgCopy := pg
			return &pgCopy, g, nil
		}
	}
	return nil, nil, ErrNotFound
}

// FindPlayerGameByHuman returns Humanity's seat in one specific game for a
// source IP.
func (s *Store) FindPlayerGameByHuman(ctx context.Context, gameID primitive.ObjectID, humanIP string) (*models.PlayerGame, error) {
	var pg models.PlayerGame
	err := s.PlayerGames().FindOne(ctx, bson.M{"gameId": gameID, "isHuman": true, "humanIp": humanIP}).Decode(&pg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pg, nil
}

// RecentPlayerGamesForHuman returns a human's finished seats with the most
// recent LastActionTime, most recent first, capped at limit — the data
// source for /human/get_stats's "last 10 games".
func (s *Store) RecentPlayerGamesForHuman(ctx context.Context, humanIP string, limit int64) ([]models.PlayerGame, error) {
	cur, err := s.PlayerGames().Find(ctx,
		bson.M{"isHuman": true, "humanIp": humanIP, "outcome": bson.M{"$ne": nil}},
		options.Find().SetSort(bson.D{{Key: "lastActionTime", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.PlayerGame
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	// most recent LastActionTime first; PlayerGame itself carries no timestamp
	// beyond LastActionTime, which is set at creation and on each action the
	// seat submits.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].LastActionTime > out[j-1].LastActionTime; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// HumanGameOutcomeCounts tallies win/loss/draw across a human's finished
// games.
func (s *Store) HumanGameOutcomeCounts(ctx context.Context, humanIP string) (wins, losses, draws int64, err error) {
	wins, err = s.PlayerGames().CountDocuments(ctx, bson.M{"isHuman": true, "humanIp": humanIP, "outcome": models.OutcomeWin})
	if err != nil {
		return
	}
	losses, err = s.PlayerGames().CountDocuments(ctx, bson.M{"isHuman": true, "humanIp": humanIP, "outcome": models.OutcomeLoss})
	if err != nil {
		return
	}
	draws, err = s.PlayerGames().CountDocuments(ctx, bson.M{"isHuman": true, "humanIp": humanIP, "outcome": models.OutcomeDraw})
	return
}

func (s *Store) SetPlayerGameRewardOutcome(ctx context.Context, id primitive.ObjectID, reward float64, outcome models.Outcome) error {
	_, err := s.PlayerGames().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"reward": reward, "outcome": outcome}})
	return err
}

func (s *Store) TouchPlayerGameLastAction(ctx context.Context, id primitive.ObjectID, ts float64) error {
	_, err := s.PlayerGames().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastActionTime": ts}})
	return err
}

// StalledPlayerGames returns PlayerGames with no outcome whose
// LastActionTime predates cutoff — the candidates for the Sweeper's stall
// pass. It does not look at TurnLog rows; the Sweeper checks separately that
// no observation was ever produced for a seat.
func (s *Store) StalledPlayerGames(ctx context.Context, cutoff float64) ([]models.PlayerGame, error) {
	cur, err := s.PlayerGames().Find(ctx, bson.M{"outcome": nil, "lastActionTime": bson.M{"$lt": cutoff}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.PlayerGame
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
