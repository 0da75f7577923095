// Package matchmaker is a periodic per-environment
// pairing loop that reads the queue and ratings, scores candidate
// groupings, randomizes among high scorers, creates games, deletes matched
// queue rows, and initializes sessions.
package matchmaker

import (
	"context"
	"log"
	"math/rand"

	"github.com/jonradoff/arena-server/internal/models"
	"github.com/jonradoff/arena-server/internal/session"
	"github.com/jonradoff/arena-server/internal/store"
)

type Matchmaker struct {
	store   *store.Store
	session *session.Registry
	tuning  Tuning
}

func New(st *store.Store, sessions *session.Registry, tuning Tuning) *Matchmaker {
	return &Matchmaker{store: st, session: sessions, tuning: tuning}
}

// Tick runs one pass over every configured environment. A failure scoring
// or committing one environment is logged and does not prevent the others
// from running — one bad environment must never halt the loop.
func (m *Matchmaker) Tick(ctx context.Context, recencyWindowSeconds float64) {
	envs, err := m.store.ListEnvironments(ctx)
	if err != nil {
		log.Printf("matchmaker: failed to list environments: %v", err)
		return
	}

	for _, env := range envs {
		if err := m.tickEnvironment(ctx, env, recencyWindowSeconds); err != nil {
			log.Printf("matchmaker: environment %s: %v", env.ID, err)
		}
	}
}

func (m *Matchmaker) tickEnvironment(ctx context.Context, env models.Environment, recencyWindowSeconds float64) error {
	now := store.NowSeconds()

	candidates, err := m.loadCandidates(ctx, env, now)
	if err != nil {
		return err
	}
	if len(candidates) < env.NumPlayers {
		return nil
	}

	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	combos := combinations(candidates, env.NumPlayers)
	if len(combos) == 0 {
		return nil
	}

	recentCache := map[[2]string]int{}
	recency := func(a, b string) int {
		key := [2]string{a, b}
		if a > b {
			key = [2]string{b, a}
		}
		if v, ok := recentCache[key]; ok {
			return v
		}
		count, err := m.store.RecentMeetingsCount(ctx, a, b, now-recencyWindowSeconds)
		if err != nil {
			log.Printf("matchmaker: recency lookup %s/%s failed: %v", a, b, err)
			count = 0
		}
		recentCache[key] = count
		return count
	}

	type scored struct {
		score float64
		combo []candidate
	}
	scoredCombos := make([]scored, 0, len(combos))
	for _, combo := range combos {
		scoredCombos = append(scoredCombos, scored{score: matchScore(combo, m.tuning, recency), combo: combo})
	}
	// stable-ish descending sort by score; ties keep the shuffled order.
	for i := 1; i < len(scoredCombos); i++ {
		for j := i; j > 0 && scoredCombos[j].score > scoredCombos[j-1].score; j-- {
			scoredCombos[j], scoredCombos[j-1] = scoredCombos[j-1], scoredCombos[j]
		}
	}

	claimed := map[string]bool{}
	var matched int
	for _, sc := range scoredCombos {
		if sc.score <= 0 {
			continue
		}
		alreadyClaimed := false
		for _, c := range sc.combo {
			if claimed[c.participantName] {
				alreadyClaimed = true
				break
			}
		}
		if alreadyClaimed {
			continue
		}
		if rand.Float64() >= sc.score {
			continue
		}
		for _, c := range sc.combo {
			claimed[c.participantName] = true
		}
		if err := m.commitMatch(ctx, env, sc.combo, now); err != nil {
			log.Printf("matchmaker: failed to commit match in %s: %v", env.ID, err)
			continue
		}
		matched++
	}

	if matched > 0 {
		log.Printf("matchmaker: env %s: %d candidates, %d combinations, %d matches committed", env.ID, len(candidates), len(combos), matched)
	}
	return nil
}

func (m *Matchmaker) loadCandidates(ctx context.Context, env models.Environment, now float64) ([]candidate, error) {
	entries, err := m.store.ListQueueEntriesForEnv(ctx, env.ID)
	if err != nil {
		return nil, err
	}

	var out []candidate
	for _, q := range entries {
		p, err := m.store.GetParticipantByName(ctx, q.ParticipantName)
		if err != nil {
			log.Printf("matchmaker: queue entry for unknown participant %s: %v", q.ParticipantName, err)
			continue
		}
		elo, err := m.store.LatestEloOrDefault(ctx, q.ParticipantName, env.ID)
		if err != nil {
			return nil, err
		}
		timeInQueue := now - q.JoinedAt
		pctQueue := 0.0
		if q.TimeLimit > 0 {
			pctQueue = timeInQueue / q.TimeLimit
		}
		qID := q.ID
		out = append(out, candidate{
			participantName: q.ParticipantName,
			email:           p.Email,
			elo:             elo,
			timeInQueue:     timeInQueue,
			pctQueue:        pctQueue,
			isHuman:         q.IsHuman,
			isStandard:      p.IsStandard,
			humanIP:         q.HumanIP,
			queueEntryID:    &qID,
		})
	}

	standards, err := m.store.StandardParticipants(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range standards {
		elo, err := m.store.LatestEloOrDefault(ctx, p.Name, env.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, candidate{
			participantName: p.Name,
			email:           " ",
			elo:             elo,
			timeInQueue:     -1,
			pctQueue:        0,
			isStandard:      true,
		})
	}

	return out, nil
}

func (m *Matchmaker) commitMatch(ctx context.Context, env models.Environment, combo []candidate, now float64) error {
	g := &models.Game{
		EnvID:     env.ID,
		StartedAt: now,
	}
	if err := m.store.CreateGame(ctx, g); err != nil {
		return err
	}

	var queueIDsToDelete []interface{}
	for idx, c := range combo {
		pg := &models.PlayerGame{
			GameID:          g.ID,
			ParticipantName: c.participantName,
			PlayerID:        idx,
			LastActionTime:  now,
			IsHuman:         c.isHuman,
			HumanIP:         c.humanIP,
		}
		if err := m.store.CreatePlayerGame(ctx, pg); err != nil {
			return err
		}
		if c.queueEntryID != nil {
			queueIDsToDelete = append(queueIDsToDelete, *c.queueEntryID)
		}
	}

	if err := m.store.DeleteQueueEntries(ctx, queueIDsToDelete); err != nil {
		return err
	}

	// Initializing the session writes specific_env_id back to the Game and,
	// for a Local seat, drives it through its opening turns before any
	// remote participant can poll.
	if _, err := m.session.Get(ctx, g.ID); err != nil {
		return err
	}

	return nil
}
