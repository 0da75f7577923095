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

func (s *Store) CreateTurnLog(ctx context.Context, t *models.TurnLog) error {
	res, err := s.TurnLogs().InsertOne(ctx, t)
	if err != nil {
		return err
	}
	t.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// PendingTurnLog returns the one TurnLog row for a PlayerGame with
// TsObservation set and TsAction null — the pending turn invariant. Returns
// ErrNotFound if there is none.
func (s *Store) PendingTurnLog(ctx context.Context, playerGameRef primitive.ObjectID) (*models.TurnLog, error) {
	var t models.TurnLog
	err := s.TurnLogs().FindOne(ctx,
		bson.M{"playerGameRef": playerGameRef, "tsAction": nil},
		options.FindOne().SetSort(bson.D{{Key: "tsObservation", Value: -1}}),
	).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) CompleteTurnLog(ctx context.Context, id primitive.ObjectID, action string, ts float64) error {
	_, err := s.TurnLogs().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"action": action, "tsAction": ts}})
	return err
}

// CountTurnLogsForPlayerGame reports whether any TurnLog row exists for a
// PlayerGame yet — used by the Sweeper's stall pass.
func (s *Store) CountTurnLogsForPlayerGame(ctx context.Context, playerGameRef primitive.ObjectID) (int64, error) {
	return s.TurnLogs().CountDocuments(ctx, bson.M{"playerGameRef": playerGameRef})
}

// TimedOutPendingTurnLogs returns every pending TurnLog (TsAction null) whose
// TsObservation predates cutoff — the Sweeper's turn-timeout pass.
func (s *Store) TimedOutPendingTurnLogs(ctx context.Context, cutoff float64) ([]models.TurnLog, error) {
	cur, err := s.TurnLogs().Find(ctx, bson.M{"tsAction": nil, "tsObservation": bson.M{"$lt": cutoff}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.TurnLog
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
