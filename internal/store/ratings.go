package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jonradoff/arena-server/internal/models"
)

// LatestRating returns the Rating row with the greatest UpdatedAt for
// (participant, env), or ErrNotFound if no history exists yet — callers
// treat that as the DefaultElo per the data model.
func (s *Store) LatestRating(ctx context.Context, participantName, envID string) (*models.Rating, error) {
	var r models.Rating
	err := s.Ratings().FindOne(ctx,
		bson.M{"participantName": participantName, "envId": envID},
		options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}}),
	).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestEloOrDefault is a convenience wrapper returning DefaultElo when no
// rating history exists.
func (s *Store) LatestEloOrDefault(ctx context.Context, participantName, envID string) (float64, error) {
	r, err := s.LatestRating(ctx, participantName, envID)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultElo, nil
	}
	if err != nil {
		return 0, err
	}
	return r.Elo, nil
}

// AppendRating inserts a new Rating row; history is never mutated.
func (s *Store) AppendRating(ctx context.Context, r *models.Rating) error {
	_, err := s.Ratings().InsertOne(ctx, r)
	return err
}

// RecentRatings returns up to the last n Rating rows for (participant, env),
// most recent first — get_results uses the first two to report the
// before/after of a just-finished game.
func (s *Store) RecentRatings(ctx context.Context, participantName, envID string, n int64) ([]models.Rating, error) {
	cur, err := s.Ratings().Find(ctx,
		bson.M{"participantName": participantName, "envId": envID},
		options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}).SetLimit(n),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Rating
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GamesPlayedCount counts a participant's PlayerGames with a non-null
// outcome (finished games; failed games carry none), used to pick the
// K-factor tier.
func (s *Store) GamesPlayedCount(ctx context.Context, participantName string) (int64, error) {
	return s.PlayerGames().CountDocuments(ctx, bson.M{
		"participantName": participantName,
		"outcome":         bson.M{"$ne": nil},
	})
}

// RecentMeetingsCount counts distinct games in the last 3 hours where both
// participants appear as PlayerGames — the matchmaker's recency component,
// corrected per the note that the original's grouped aggregation is
// ambiguous for n=2 and wrong for n>2. Implemented as a genuine pairwise
// join count rather than that aggregation.
func (s *Store) RecentMeetingsCount(ctx context.Context, a, b string, sinceSeconds float64) (int, error) {
	cur, err := s.PlayerGames().Find(ctx, bson.M{"participantName": a})
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)
	var aGames []models.PlayerGame
	if err := cur.All(ctx, &aGames); err != nil {
		return 0, err
	}

	count := 0
	for _, pg := range aGames {
		g, err := s.GetGame(ctx, pg.GameID)
		if err != nil || g.StartedAt < sinceSeconds {
			continue
		}
		bPg, err := s.FindPlayerGameByParticipant(ctx, pg.GameID, b)
		if err != nil {
			continue
		}
		_ = bPg
		count++
	}
	return count, nil
}
