package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jonradoff/arena-server/internal/models"
)

var ErrNotFound = errors.New("not found")
var ErrAlreadyExists = errors.New("already exists")

func (s *Store) CreateParticipant(ctx context.Context, p *models.Participant) error {
	p.CreatedAt = time.Now()
	_, err := s.Participants().InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *Store) GetParticipantByName(ctx context.Context, name string) (*models.Participant, error) {
	var p models.Participant
	err := s.Participants().FindOne(ctx, bson.M{"name": name}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetParticipantByToken(ctx context.Context, token string) (*models.Participant, error) {
	var p models.Participant
	err := s.Participants().FindOne(ctx, bson.M{"token": token}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AuthenticateParticipant verifies that (name, token) refer to the same
// existing Participant, the contract required of every agent endpoint.
func (s *Store) AuthenticateParticipant(ctx context.Context, name, token string) (*models.Participant, error) {
	p, err := s.GetParticipantByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if p.Name != name {
		return nil, ErrNotFound
	}
	return p, nil
}

// StandardParticipants returns all pre-seeded in-process agent participants.
func (s *Store) StandardParticipants(ctx context.Context) ([]models.Participant, error) {
	cur, err := s.Participants().Find(ctx, bson.M{"isStandard": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Participant
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrCreateHuman upserts the Human row for ip, refreshing LastActive, and
// returns the resulting row.
func (s *Store) GetOrCreateHuman(ctx context.Context, ip string) (*models.Human, error) {
	now := time.Now()
	_, err := s.Humans().UpdateOne(ctx,
		bson.M{"_id": ip},
		bson.M{
			"$set":         bson.M{"lastActive": now},
			"$setOnInsert": bson.M{"gamesPlayed": 0, "createdAt": now},
		},
		options.Upsert(),
	)
	if err != nil {
		return nil, err
	}
	var h models.Human
	if err := s.Humans().FindOne(ctx, bson.M{"_id": ip}).Decode(&h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *Store) IncrementHumanGamesPlayed(ctx context.Context, ip string) error {
	_, err := s.Humans().UpdateOne(ctx,
		bson.M{"_id": ip},
		bson.M{"$inc": bson.M{"gamesPlayed": 1}, "$set": bson.M{"lastActive": time.Now()}},
	)
	return err
}
