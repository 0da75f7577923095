// Package session implements the Session Registry: an in-memory map
// game_id -> Session, created lazily on first use, removed on termination.
// A Session drives one active match's turn progression across two
// participant flavors: Remote (every participant polls over HTTP) and Local
// (one participant is an in-process agent advanced synchronously, inline
// with the remote step that triggered it).
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jonradoff/arena-server/internal/agent"
	"github.com/jonradoff/arena-server/internal/models"
	"github.com/jonradoff/arena-server/internal/rating"
	"github.com/jonradoff/arena-server/internal/rules"
	"github.com/jonradoff/arena-server/internal/store"
)

var (
	ErrNotYourTurn    = errors.New("not your turn")
	ErrGameNotActive  = errors.New("game is not active")
)

// Session is the shared capability surface over one live game's Rules
// instance, regardless of whether one seat is a Local in-process agent.
type Session struct {
	mu sync.Mutex

	gameID primitive.ObjectID
	envID  string

	engine rules.Engine

	// localPid is the player_id of the in-process agent, or -1 for a pure
	// Remote session.
	localPid   int
	localAgent agent.LocalAgent

	playerGameID    []primitive.ObjectID
	participantName []string

	store   *store.Store
	updater *rating.Updater

	// registry evicts this session on finalization. nil for a session
	// built directly by newTerminalSession, which is already finished and
	// never finalizes.
	registry *Registry

	finished bool

	// terminalObs holds the per-player observation to report for a game
	// the Store already recorded as finished/failed before this process
	// ever built a Session for it — set only by newTerminalSession, in
	// which case engine is nil and must never be dereferenced.
	terminalObs map[int]string
}

type newSessionParams struct {
	gameID          primitive.ObjectID
	envID           string
	engine          rules.Engine
	playerGameID    []primitive.ObjectID
	participantName []string
	localPid        int
	localAgent      agent.LocalAgent
	store           *store.Store
	updater         *rating.Updater
	registry        *Registry
}

func newSession(p newSessionParams) *Session {
	return &Session{
		gameID:          p.gameID,
		envID:           p.envID,
		engine:          p.engine,
		localPid:        p.localPid,
		localAgent:      p.localAgent,
		playerGameID:    p.playerGameID,
		participantName: p.participantName,
		store:           p.store,
		updater:         p.updater,
		registry:        p.registry,
	}
}

// newTerminalSession builds a Session for a game the Store already records
// as finished or failed when the Registry sees it for the first time in
// this process — after a sweeper forfeit/stall evicted the live session, or
// after a process restart dropped the in-memory map entirely. It carries no
// Rules engine: there is no play left to resurrect, only the recorded
// outcome to report back on poll.
func newTerminalSession(gameID primitive.ObjectID, g *models.Game, pgs []models.PlayerGame) *Session {
	playerGameID := make([]primitive.ObjectID, len(pgs))
	participantName := make([]string, len(pgs))
	terminalObs := make(map[int]string, len(pgs))
	for _, pg := range pgs {
		playerGameID[pg.PlayerID] = pg.ID
		participantName[pg.PlayerID] = pg.ParticipantName
		terminalObs[pg.PlayerID] = terminalObservation(g.Reason, pg.Outcome)
	}
	return &Session{
		gameID:          gameID,
		envID:           g.EnvID,
		localPid:        -1,
		playerGameID:    playerGameID,
		participantName: participantName,
		finished:        true,
		terminalObs:     terminalObs,
	}
}

func terminalObservation(reason string, outcome *models.Outcome) string {
	if reason == "" {
		reason = "the game ended"
	}
	switch {
	case outcome == nil:
		return fmt.Sprintf("Game over: %s", reason)
	case *outcome == models.OutcomeWin:
		return fmt.Sprintf("Game over, you won. %s", reason)
	case *outcome == models.OutcomeLoss:
		return fmt.Sprintf("Game over, you lost. %s", reason)
	default:
		return fmt.Sprintf("Game over, draw. %s", reason)
	}
}

// IsMyTurn reports whether playerID currently owes an action.
func (s *Session) IsMyTurn(playerID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.finished && s.engine.CurrentPlayer() == playerID
}

// Finished reports whether this session has already finalized — handlers
// use it to decide whether check_turn/step should fall back to
// force-observation / done-true rather than touching the engine.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// ObserveTurn delivers the current player's observation and records a new
// pending TurnLog row, or returns the already-pending row unchanged if one
// exists — repeated polls without an intervening action return the same
// observation (the round-trip law in the testable properties).
func (s *Session) ObserveTurn(ctx context.Context, playerID int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return s.forceObservationLocked(playerID), nil
	}
	if s.engine.CurrentPlayer() != playerID {
		return "", ErrNotYourTurn
	}

	pgID := s.playerGameID[playerID]
	pending, err := s.store.PendingTurnLog(ctx, pgID)
	if err == nil {
		return pending.Observation, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	obs := s.engine.Observation(playerID)
	if err := s.store.CreateTurnLog(ctx, &models.TurnLog{
		PlayerGameRef:   pgID,
		ParticipantName: s.participantName[playerID],
		Observation:     obs,
		TsObservation:   store.NowSeconds(),
	}); err != nil {
		return "", err
	}
	return obs, nil
}

// ForceObservation returns the terminal observation for playerID regardless
// of whose turn it is — used once a game has already finished so the
// participant learns the end state on its next poll, without mutating any
// pending TurnLog (the open question in the design notes is resolved this
// way: a pure read).
func (s *Session) ForceObservation(playerID int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forceObservationLocked(playerID)
}

// forceObservationLocked returns the terminal text for playerID. Must be
// called with s.mu held. A session built by newTerminalSession has no
// engine at all — terminalObs is its only source of truth — so this checks
// terminalObs first rather than assuming engine is non-nil.
func (s *Session) forceObservationLocked(playerID int) string {
	if s.terminalObs != nil {
		return s.terminalObs[playerID]
	}
	return s.engine.ForceObservation(playerID)
}

// SubmitAction is the turn contract's write path: verify turn ownership,
// step the engine, complete the pending TurnLog, drive any Local turns that
// follow, and finalize if the game concluded. Returns whether the game is
// now done.
func (s *Session) SubmitAction(ctx context.Context, playerID int, action string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return true, nil
	}
	if s.engine.CurrentPlayer() != playerID {
		return false, ErrNotYourTurn
	}

	pgID := s.playerGameID[playerID]
	pending, err := s.store.PendingTurnLog(ctx, pgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrNotYourTurn
		}
		return false, err
	}

	res, err := s.engine.Step(action)
	if err != nil {
		return false, s.finalizeEngineError(ctx, err)
	}

	ts := store.NowSeconds()
	if err := s.store.CompleteTurnLog(ctx, pending.ID, action, ts); err != nil {
		return false, err
	}
	if err := s.store.TouchPlayerGameLastAction(ctx, pgID, ts); err != nil {
		return false, err
	}

	if res.Done {
		return true, s.finalize(ctx, res.Info["reason"])
	}

	if err := s.driveLocal(ctx); err != nil {
		return false, err
	}
	return s.finished, nil
}

// driveLocal implements the Local turn contract: after any step that hands
// control to the in-process agent, synchronously keep stepping it until
// control leaves the local seat or the game ends. Runs inline inside the
// same handler call that triggered the preceding remote step.
func (s *Session) driveLocal(ctx context.Context) error {
	if s.localAgent == nil {
		return nil
	}

	for !s.finished && s.engine.CurrentPlayer() == s.localPid {
		obs := s.engine.Observation(s.localPid)
		action, err := s.localAgent.Act(obs)
		if err != nil {
			return s.finalizeEngineError(ctx, fmt.Errorf("local agent error: %w", err))
		}

		ts := store.NowSeconds()
		pgID := s.playerGameID[s.localPid]
		if err := s.store.CreateTurnLog(ctx, &models.TurnLog{
			PlayerGameRef:   pgID,
			ParticipantName: s.participantName[s.localPid],
			Observation:     obs,
			TsObservation:   ts,
			Action:          &action,
			TsAction:        &ts,
		}); err != nil {
			return err
		}
		if err := s.store.TouchPlayerGameLastAction(ctx, pgID, ts); err != nil {
			return err
		}

		res, err := s.engine.Step(action)
		if err != nil {
			return s.finalizeEngineError(ctx, err)
		}
		if res.Done {
			return s.finalize(ctx, res.Info["reason"])
		}
	}
	return nil
}

// finalize closes the rules engine, classifies each player's outcome,
// updates ratings, and removes the session from the registry. Must be
// called with s.mu held. Idempotent at the Store level via the
// active->finished guard; the session lock makes it exactly-once from this
// process's perspective too.
func (s *Session) finalize(ctx context.Context, reason string) error {
	if s.finished {
		return nil
	}
	if reason == "" {
		reason = "No reason provided"
	}

	rewards, err := s.engine.Close()
	if err != nil {
		return s.finalizeEngineErrorLocked(ctx, err)
	}

	transitioned, err := s.store.FinishGame(ctx, s.gameID, reason)
	if err != nil {
		return err
	}
	if !transitioned {
		// Another caller already finalized this game; nothing further to do
		// beyond evicting this now-stale session from the registry.
		s.finished = true
		s.evictFromRegistry()
		return nil
	}

	minReward, maxReward := 0.0, 0.0
	first := true
	for _, r := range rewards {
		if first {
			minReward, maxReward = r, r
			first = false
			continue
		}
		if r < minReward {
			minReward = r
		}
		if r > maxReward {
			maxReward = r
		}
	}

	for pid, pgID := range s.playerGameID {
		reward := rewards[pid]
		outcome := models.OutcomeFromRewards(reward, minReward, maxReward)
		if err := s.store.SetPlayerGameRewardOutcome(ctx, pgID, reward, outcome); err != nil {
			return err
		}
	}

	if s.updater != nil {
		if err := s.updater.Update(ctx, s.gameID, s.envID, store.NowSeconds()); err != nil {
			log.Printf("session: rating update failed for game %s: %v", s.gameID.Hex(), err)
		}
	}

	s.finished = true
	s.evictFromRegistry()
	return nil
}

// finalizeEngineError treats a Rules adapter failure as game termination
// with no rating update, per the RulesEngineError taxonomy entry. Must be
// called with s.mu held.
func (s *Session) finalizeEngineError(ctx context.Context, cause error) error {
	return s.finalizeEngineErrorLocked(ctx, cause)
}

func (s *Session) finalizeEngineErrorLocked(ctx context.Context, cause error) error {
	if s.finished {
		return nil
	}
	reason := fmt.Sprintf("engine error: %v", cause)
	if _, err := s.store.FailGame(ctx, s.gameID, reason); err != nil {
		log.Printf("session: failed to mark game %s failed after engine error: %v", s.gameID.Hex(), err)
	}
	s.finished = true
	s.evictFromRegistry()
	log.Printf("session: game %s terminated: %s", s.gameID.Hex(), reason)
	return nil
}

// evictFromRegistry removes this session from the Registry it was built
// from, so a normally-completed or failed game doesn't linger in the
// in-memory map for the rest of the process lifetime. Must be called with
// s.mu held; Registry.Remove takes its own, separate lock.
func (s *Session) evictFromRegistry() {
	if s.registry != nil {
		s.registry.Remove(s.gameID)
	}
}
