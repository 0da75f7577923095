package session

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jonradoff/arena-server/internal/agent"
	"github.com/jonradoff/arena-server/internal/models"
	"github.com/jonradoff/arena-server/internal/rating"
	"github.com/jonradoff/arena-server/internal/rules"
	"github.com/jonradoff/arena-server/internal/store"
)

// Registry is the in-memory map game_id -> Session. Lookup is lazy: a
// Session is constructed on first use after a Game row already exists.
// Insertion is guarded so two concurrent first-uses of the same game_id
// yield the very same Session rather than two competing Rules instances.
type Registry struct {
	mu       sync.Mutex
	sessions map[primitive.ObjectID]*Session

	store    *store.Store
	updater  *rating.Updater
	factory  rules.Factory
	agents   *agent.Registry
}

func NewRegistry(st *store.Store, updater *rating.Updater, factory rules.Factory, agents *agent.Registry) *Registry {
	return &Registry{
		sessions: make(map[primitive.ObjectID]*Session),
		store:    st,
		updater:  updater,
		factory:  factory,
		agents:   agents,
	}
}

// Remove drops a terminated game's session from the registry.
func (r *Registry) Remove(gameID primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, gameID)
}

// Get returns the live session for gameID, constructing it on first use.
// Construction picks the Local variant iff any PlayerGame in the game
// references a participant with a registered LocalAgent; otherwise Remote.
func (r *Registry) Get(ctx context.Context, gameID primitive.ObjectID) (*Session, error) {
	r.mu.Lock()
	if s, ok := r.sessions[gameID]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	// Build outside the registry lock — construction may call into the
	// Store and the Rules adapter — then install it under lock, discarding
	// a redundant build if another caller beat us to it.
	s, err := r.build(ctx, gameID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[gameID]; ok {
		return existing, nil
	}
	r.sessions[gameID] = s
	return s, nil
}

func (r *Registry) build(ctx context.Context, gameID primitive.ObjectID) (*Session, error) {
	g, err := r.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	pgs, err := r.store.ListPlayerGames(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if len(pgs) == 0 {
		return nil, fmt.Errorf("session: game %s has no player games", gameID.Hex())
	}

	// A game already in a terminal Store state has nothing left to play —
	// this happens whenever a session was evicted after a sweeper forfeit/
	// stall (sweeper.go calls Registry.Remove on both paths) or the
	// process restarted and lost the in-memory map entirely. Building a
	// fresh Rules engine here would resurrect play on a finished game, so
	// skip the engine and hand back a Session that only ever reports the
	// recorded outcome.
	if g.Status != models.GameStatusActive {
		return newTerminalSession(gameID, g, pgs), nil
	}

	env, err := r.store.GetEnvironment(ctx, g.EnvID)
	if err != nil {
		return nil, err
	}

	engine, err := r.factory.New(g.EnvID, env.NumPlayers)
	if err != nil {
		return nil, err
	}

	playerGameID := make([]primitive.ObjectID, env.NumPlayers)
	participantName := make([]string, env.NumPlayers)
	localPid := -1
	var localAgent agent.LocalAgent

	for _, pg := range pgs {
		playerGameID[pg.PlayerID] = pg.ID
		participantName[pg.PlayerID] = pg.ParticipantName
		if a, ok := r.agents.Get(pg.ParticipantName); ok {
			localPid = pg.PlayerID
			localAgent = a
		}
	}

	if g.SpecificEnvID == "" {
		if err := r.store.SetGameSpecificEnvID(ctx, gameID, engine.SpecificEnvID()); err != nil {
			return nil, err
		}
	}

	s := newSession(newSessionParams{
		gameID:          gameID,
		envID:           g.EnvID,
		engine:          engine,
		playerGameID:    playerGameID,
		participantName: participantName,
		localPid:        localPid,
		localAgent:      localAgent,
		store:           r.store,
		updater:         r.updater,
		registry:        r,
	})

	if localAgent != nil {
		s.mu.Lock()
		_ = s.driveLocal(ctx)
		s.mu.Unlock()
	}

	return s, nil
}
