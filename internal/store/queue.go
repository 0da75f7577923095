package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jonradoff/arena-server/internal/models"
)

// JoinQueue inserts a queue entry. Callers must first check for an existing
// entry themselves — the uniqueness invariant is (env, participant) except
// for Humanity, which is keyed by (env, humanIP).
func (s *Store) JoinQueue(ctx context.Context, q *models.QueueEntry) error {
	_, err := s.QueueEntries().InsertOne(ctx, q)
	return err
}

func (s *Store) FindQueueEntry(ctx context.Context, envID, participantName string) (*models.QueueEntry, error) {
	var q models.QueueEntry
	err := s.QueueEntries().FindOne(ctx, bson.M{"envId": envID, "participantName": participantName}).Decode(&q)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// FindHumanQueueEntry looks up Humanity's per-ip queue row.
func (s *Store) FindHumanQueueEntry(ctx context.Context, envID, humanIP string) (*models.QueueEntry, error) {
	var q models.QueueEntry
	err := s.QueueEntries().FindOne(ctx, bson.M{
		"envId":   envID,
		"isHuman": true,
		"humanIp": humanIP,
	}).Decode(&q)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *Store) DeleteQueueEntry(ctx context.Context, id interface{}) error {
	_, err := s.QueueEntries().DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *Store) DeleteQueueEntries(ctx context.Context, ids []interface{}) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.QueueEntries().DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return err
}

func (s *Store) TouchQueueEntry(ctx context.Context, id interface{}, lastChecked float64) error {
	_, err := s.QueueEntries().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastChecked": lastChecked}})
	return err
}

func (s *Store) ListQueueEntriesForEnv(ctx context.Context, envID string) ([]models.QueueEntry, error) {
	cur, err := s.QueueEntries().Find(ctx, bson.M{"envId": envID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.QueueEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteStaleQueueEntries removes every entry whose lastChecked predates
// cutoff (seconds-since-epoch), implementing the Sweeper's queue-inactivity
// pass. Returns the deleted count.
func (s *Store) DeleteStaleQueueEntries(ctx context.Context, cutoff float64) (int64, error) {
	res, err := s.QueueEntries().DeleteMany(ctx, bson.M{"lastChecked": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
