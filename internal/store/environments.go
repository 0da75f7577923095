package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jonradoff/arena-server/internal/models"
)

func (s *Store) UpsertEnvironment(ctx context.Context, env *models.Environment) error {
	_, err := s.Environments().UpdateOne(ctx,
		bson.M{"_id": env.ID},
		bson.M{"$set": env},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *Store) GetEnvironment(ctx context.Context, envID string) (*models.Environment, error) {
	var e models.Environment
	err := s.Environments().FindOne(ctx, bson.M{"_id": envID}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEnvironments(ctx context.Context) ([]models.Environment, error) {
	cur, err := s.Environments().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Environment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
