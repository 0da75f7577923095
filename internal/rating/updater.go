// Package rating recomputes ratings on game finish, using a per-participant
// K-factor and the average expected score against the field of opponents.
package rating

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jonradoff/arena-server/internal/elo"
	"github.com/jonradoff/arena-server/internal/models"
	"github.com/jonradoff/arena-server/internal/store"
)

type Updater struct {
	store     *store.Store
	standards map[string]bool
}

// NewUpdater takes the set of participant names that are pre-seeded
// Standard in-process agents, needed to pick their fixed K-factor.
func NewUpdater(st *store.Store, standardNames []string) *Updater {
	m := make(map[string]bool, len(standardNames))
	for _, n := range standardNames {
		m[n] = true
	}
	return &Updater{store: st, standards: m}
}

func (u *Updater) isStandard(name string) bool {
	return u.standards[name]
}

// Update recomputes and appends a new Rating row for every PlayerGame in
// gameID. Rewards/outcomes on the PlayerGame rows must already be set by the
// session's finalization step before this is invoked.
func (u *Updater) Update(ctx context.Context, gameID primitive.ObjectID, envID string, nowSeconds float64) error {
	pgs, err := u.store.ListPlayerGames(ctx, gameID)
	if err != nil {
		return err
	}

	prevElo := make([]float64, len(pgs))
	score := make([]float64, len(pgs))
	kFactor := make([]int, len(pgs))

	for i, pg := range pgs {
		e, err := u.store.LatestEloOrDefault(ctx, pg.ParticipantName, envID)
		if err != nil {
			return err
		}
		prevElo[i] = e

		win := pg.Outcome != nil && *pg.Outcome == models.OutcomeWin
		draw := pg.Outcome == nil || *pg.Outcome == models.OutcomeDraw
		score[i] = elo.ScoreForOutcome(win, draw)

		gamesPlayed, err := u.store.GamesPlayedCount(ctx, pg.ParticipantName)
		if err != nil {
			return err
		}
		isHuman := pg.ParticipantName == models.HumanityName
		kFactor[i] = elo.KFactor(isHuman, u.isStandard(pg.ParticipantName), int(gamesPlayed))
	}

	for i, pg := range pgs {
		var sum float64
		var n int
		for j := range pgs {
			if j == i {
				continue
			}
			sum += prevElo[j]
			n++
		}
		avgOpp := float64(models.DefaultElo)
		if n > 0 {
			avgOpp = sum / float64(n)
		}

		expected := elo.ExpectedScore(prevElo[i], avgOpp)
		newElo := elo.NewRating(prevElo[i], kFactor[i], score[i], expected)

		if err := u.store.AppendRating(ctx, &models.Rating{
			ParticipantName: pg.ParticipantName,
			EnvID:           envID,
			Elo:             newElo,
			UpdatedAt:       nowSeconds,
		}); err != nil {
			return err
		}

		if pg.IsHuman && pg.HumanIP != "" {
			if err := u.store.IncrementHumanGamesPlayed(ctx, pg.HumanIP); err != nil {
				log.Printf("rating: failed to bump human games played for %s: %v", pg.HumanIP, err)
			}
		}
	}

	return nil
}
