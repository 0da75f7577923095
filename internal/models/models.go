// Package models holds the persistent entities owned by the Store.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Outcome classifies how a PlayerGame ended.
type Outcome string

const (
	OutcomeWin  Outcome = "Win"
	OutcomeLoss Outcome = "Loss"
	OutcomeDraw Outcome = "Draw"
)

// GameStatus is the monotone lifecycle state of a Game.
type GameStatus string

const (
	GameStatusActive   GameStatus = "active"
	GameStatusFinished GameStatus = "finished"
	GameStatusFailed   GameStatus = "failed"
)

// HumanityName is the shared pseudo-participant under which real humans play.
const HumanityName = "Humanity"

// DefaultElo is the rating assumed for a (participant, env) pair with no Rating row yet.
const DefaultElo = 1000

// Participant is a registered agent, the Humanity pseudo-participant, or a
// pre-seeded Standard in-process agent. Unique by Name; Token uniquely
// identifies it for authenticated calls. Never destroyed once created.
type Participant struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description" bson:"description"`
	Email       string             `json:"email" bson:"email"`
	Token       string             `json:"token" bson:"token"`
	IsStandard  bool               `json:"isStandard" bson:"isStandard"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
}

// Environment is a static catalog row defining how many participants one
// game of this kind needs.
type Environment struct {
	ID           string `json:"id" bson:"_id"`
	NumPlayers   int    `json:"numPlayers" bson:"numPlayers"`
	HasStandard  bool   `json:"hasStandard" bson:"hasStandard"`
	StandardName string `json:"standardName,omitempty" bson:"standardName,omitempty"`
}

// QueueEntry represents one participant waiting for a match in one
// environment. At most one entry per (participant, env), except Humanity,
// which may hold many, one per distinct HumanIP.
type QueueEntry struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	EnvID           string             `json:"envId" bson:"envId"`
	ParticipantName string             `json:"participantName" bson:"participantName"`
	JoinedAt        float64            `json:"joinedAt" bson:"joinedAt"`
	TimeLimit       float64            `json:"timeLimit" bson:"timeLimit"`
	LastChecked     float64            `json:"lastChecked" bson:"lastChecked"`
	IsHuman         bool               `json:"isHuman" bson:"isHuman"`
	HumanIP         string             `json:"humanIp,omitempty" bson:"humanIp,omitempty"`
}

// Game is one active or terminated match.
type Game struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	EnvID          string             `json:"envId" bson:"envId"`
	SpecificEnvID  string             `json:"specificEnvId,omitempty" bson:"specificEnvId,omitempty"`
	StartedAt      float64            `json:"startedAt" bson:"startedAt"`
	Status         GameStatus         `json:"status" bson:"status"`
	Reason         string             `json:"reason,omitempty" bson:"reason,omitempty"`
}

// PlayerGame is one participant's seat in one game. Exactly NumPlayers rows
// exist per game; PlayerID is unique within the game.
type PlayerGame struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	GameID          primitive.ObjectID `json:"gameId" bson:"gameId"`
	ParticipantName string             `json:"participantName" bson:"participantName"`
	PlayerID        int                `json:"playerId" bson:"playerId"`
	Reward          *float64           `json:"reward,omitempty" bson:"reward,omitempty"`
	Outcome         *Outcome           `json:"outcome,omitempty" bson:"outcome,omitempty"`
	LastActionTime  float64            `json:"lastActionTime" bson:"lastActionTime"`
	IsHuman         bool               `json:"isHuman" bson:"isHuman"`
	HumanIP         string             `json:"humanIp,omitempty" bson:"humanIp,omitempty"`
}

// TurnLog is one observation delivered to a participant, append-only. An
// observation is "answered" once Action/TsAction are filled. At most one
// TurnLog per PlayerGame may have TsAction null at a time — the pending turn.
type TurnLog struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	PlayerGameRef primitive.ObjectID `json:"playerGameRef" bson:"playerGameRef"`
	ParticipantName string           `json:"participantName" bson:"participantName"`
	Observation   string             `json:"observation" bson:"observation"`
	TsObservation float64            `json:"tsObservation" bson:"tsObservation"`
	Action        *string            `json:"action,omitempty" bson:"action,omitempty"`
	TsAction      *float64           `json:"tsAction,omitempty" bson:"tsAction,omitempty"`
}

// Rating is one entry in a (participant, env)'s append-only rating history.
// The row with the greatest UpdatedAt is the current value.
type Rating struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ParticipantName string             `json:"participantName" bson:"participantName"`
	EnvID           string             `json:"envId" bson:"envId"`
	Elo             float64            `json:"elo" bson:"elo"`
	UpdatedAt       float64            `json:"updatedAt" bson:"updatedAt"`
}

// Human identifies a human player by source IP address.
type Human struct {
	IP          string    `json:"ip" bson:"_id"`
	GamesPlayed int       `json:"gamesPlayed" bson:"gamesPlayed"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	LastActive  time.Time `json:"lastActive" bson:"lastActive"`
}

// OutcomeFromRewards classifies a player's outcome relative to the full
// reward set of its game, per the min/max comparison in the session
// finalization contract.
func OutcomeFromRewards(reward, min, max float64) Outcome {
	switch {
	case reward > min:
		return OutcomeWin
	case reward < max:
		return OutcomeLoss
	default:
		return OutcomeDraw
	}
}
