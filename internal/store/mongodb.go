// Package store is the durable record of participants, environments, queue
// entries, games, player games, turn logs, and rating history. It holds no
// business logic — callers decide what to read and when to write; the
// Store only guarantees the read/write shapes below.
package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func New(uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(200).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &Store{
		Client:   client,
		Database: client.Database(database),
	}

	go s.ensureIndexes()

	return s, nil
}

// ensureIndexes creates all required indexes. Called once on startup in the
// background so a slow index build never delays readiness.
func (s *Store) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	indexes := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{
			"participants",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
			},
		},
		{
			"queue_entries",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "envId", Value: 1}, {Key: "participantName", Value: 1}}},
				{Keys: bson.D{{Key: "lastChecked", Value: 1}}},
			},
		},
		{
			"games",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "status", Value: 1}, {Key: "envId", Value: 1}}},
			},
		},
		{
			"player_games",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "gameId", Value: 1}, {Key: "playerId", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "participantName", Value: 1}}},
				{Keys: bson.D{{Key: "outcome", Value: 1}}},
			},
		},
		{
			"turn_logs",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "playerGameRef", Value: 1}, {Key: "tsAction", Value: 1}}},
			},
		},
		{
			"ratings",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "participantName", Value: 1}, {Key: "envId", Value: 1}, {Key: "updatedAt", Value: -1}}},
			},
		},
		{
			"humans",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "lastActive", Value: 1}}},
			},
		},
	}

	for _, idx := range indexes {
		coll := s.Database.Collection(idx.collection)
		if _, err := coll.Indexes().CreateMany(ctx, idx.models); err != nil {
			log.Printf("Warning: failed to create indexes on %s: %v", idx.collection, err)
		}
	}

	log.Println("Database indexes ensured")
}

func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

func (s *Store) Participants() *mongo.Collection  { return s.Database.Collection("participants") }
func (s *Store) Environments() *mongo.Collection   { return s.Database.Collection("environments") }
func (s *Store) QueueEntries() *mongo.Collection   { return s.Database.Collection("queue_entries") }
func (s *Store) Games() *mongo.Collection          { return s.Database.Collection("games") }
func (s *Store) PlayerGames() *mongo.Collection    { return s.Database.Collection("player_games") }
func (s *Store) TurnLogs() *mongo.Collection       { return s.Database.Collection("turn_logs") }
func (s *Store) Ratings() *mongo.Collection        { return s.Database.Collection("ratings") }
func (s *Store) Humans() *mongo.Collection         { return s.Database.Collection("humans") }

// nowSeconds is the wall-clock convention used throughout the Store: seconds
// since epoch as a float, per the persistent state layout.
func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// NowSeconds exposes nowSeconds to callers outside the package that need the
// same wall-clock convention (handlers, sweeper, matchmaker).
func NowSeconds() float64 {
	return nowSeconds()
}
