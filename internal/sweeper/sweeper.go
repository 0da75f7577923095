// Package sweeper bounds queue inactivity, per-turn response time, and
// game-load failures. Runs each matchmaking tick, before the Matchmaker.
package sweeper

import (
	"context"
	"log"

	"github.com/jonradoff/arena-server/internal/models"
	"github.com/jonradoff/arena-server/internal/rating"
	"github.com/jonradoff/arena-server/internal/session"
	"github.com/jonradoff/arena-server/internal/store"
)

type Sweeper struct {
	store   *store.Store
	session *session.Registry
	updater *rating.Updater
}

func New(st *store.Store, sessions *session.Registry, updater *rating.Updater) *Sweeper {
	return &Sweeper{store: st, session: sessions, updater: updater}
}

// Tick runs three independent passes — turn-timeout forfeit, stall-to-failed,
// and queue-inactivity cleanup. A failure in one pass is logged and does not
// prevent the others from running.
func (s *Sweeper) Tick(ctx context.Context, stepTimeoutSeconds, matchmakingInactivityTimeoutSeconds float64) {
	now := store.NowSeconds()

	if err := s.turnTimeoutPass(ctx, now-stepTimeoutSeconds); err != nil {
		log.Printf("sweeper: turn-timeout pass failed: %v", err)
	}
	if err := s.stallPass(ctx, now-stepTimeoutSeconds); err != nil {
		log.Printf("sweeper: stall pass failed: %v", err)
	}
	if n, err := s.store.DeleteStaleQueueEntries(ctx, now-matchmakingInactivityTimeoutSeconds); err != nil {
		log.Printf("sweeper: queue-inactivity pass failed: %v", err)
	} else if n > 0 {
		log.Printf("sweeper: removed %d inactive queue entries", n)
	}
}

// turnTimeoutPass forfeits every pending TurnLog whose observation predates
// cutoff: the offender loses, everyone else in the game wins, the game
// finishes, and a rating update runs.
func (s *Sweeper) turnTimeoutPass(ctx context.Context, cutoff float64) error {
	pending, err := s.store.TimedOutPendingTurnLogs(ctx, cutoff)
	if err != nil {
		return err
	}

	seenGames := map[string]bool{}
	for _, t := range pending {
		pg, err := s.findPlayerGameForTurnLog(ctx, t)
		if err != nil {
			log.Printf("sweeper: could not resolve player game for timed-out turn log %s: %v", t.ID.Hex(), err)
			continue
		}
		if seenGames[pg.GameID.Hex()] {
			continue
		}

		g, err := s.store.GetGame(ctx, pg.GameID)
		if err != nil || g.Status != models.GameStatusActive {
			continue
		}
		seenGames[pg.GameID.Hex()] = true

		if err := s.forfeitGame(ctx, g, pg); err != nil {
			log.Printf("sweeper: failed to forfeit game %s: %v", g.ID.Hex(), err)
		}
	}
	return nil
}

func (s *Sweeper) findPlayerGameForTurnLog(ctx context.Context, t models.TurnLog) (*models.PlayerGame, error) {
	// PlayerGameRef is the PlayerGame's own _id; look it up by scanning
	// active games' player games would be wasteful, so resolve directly.
	return s.store.GetPlayerGameByID(ctx, t.PlayerGameRef)
}

// forfeitGame implements the turn-timeout transition: the offender gets
// reward -1 / Loss, every other active PlayerGame gets 0 / Win.
func (s *Sweeper) forfeitGame(ctx context.Context, g *models.Game, offender *models.PlayerGame) error {
	reason := "Player '" + offender.ParticipantName + "' timed out."
	transitioned, err := s.store.FinishGame(ctx, g.ID, reason)
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	pgs, err := s.store.ListPlayerGames(ctx, g.ID)
	if err != nil {
		return err
	}
	for _, pg := range pgs {
		if pg.ID == offender.ID {
			if err := s.store.SetPlayerGameRewardOutcome(ctx, pg.ID, -1, models.OutcomeLoss); err != nil {
				return err
			}
		} else {
			if err := s.store.SetPlayerGameRewardOutcome(ctx, pg.ID, 0, models.OutcomeWin); err != nil {
				return err
			}
		}
	}

	if s.updater != nil {
		if err := s.updater.Update(ctx, g.ID, g.EnvID, store.NowSeconds()); err != nil {
			log.Printf("sweeper: rating update failed for forfeited game %s: %v", g.ID.Hex(), err)
		}
	}

	s.session.Remove(g.ID)
	return nil
}

// stallPass marks a Game failed if one of its PlayerGames never produced a
// TurnLog row and has gone quiet past cutoff — a game that never loaded. No
// rewards are assigned and rating is untouched.
func (s *Sweeper) stallPass(ctx context.Context, cutoff float64) error {
	stalled, err := s.store.StalledPlayerGames(ctx, cutoff)
	if err != nil {
		return err
	}

	seenGames := map[string]bool{}
	for _, pg := range stalled {
		if seenGames[pg.GameID.Hex()] {
			continue
		}
		count, err := s.store.CountTurnLogsForPlayerGame(ctx, pg.ID)
		if err != nil || count > 0 {
			continue
		}

		g, err := s.store.GetGame(ctx, pg.GameID)
		if err != nil || g.Status != models.GameStatusActive {
			continue
		}
		seenGames[pg.GameID.Hex()] = true

		if _, err := s.store.FailGame(ctx, g.ID, "game failed to load"); err != nil {
			log.Printf("sweeper: failed to mark stalled game %s failed: %v", g.ID.Hex(), err)
			continue
		}
		s.session.Remove(g.ID)
	}
	return nil
}
