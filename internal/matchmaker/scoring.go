package matchmaker

import "math"

// Tuning is the subset of config.Config the scoring function needs; kept as
// its own small struct so scoring has no import-cycle dependency on the
// config package.
type Tuning struct {
	MaxEloDelta         float64
	PctTimeBase         float64
	NumRecentGamesCap   int
	MinWaitForStandard  float64 // seconds
}

// recencyLookup counts recent meetings between two participants; supplied by
// the caller so scoring stays a pure function over in-memory candidates.
type recencyLookup func(a, b string) int

// matchScore scores one candidate combination, generalized from a two-player
// formula to a combination of any size: every "any pair" check is a genuine
// pairwise check across the whole combination, and the elo and recency
// components use the worst/aggregate pairwise values rather than a single
// pair's.
func matchScore(combo []candidate, t Tuning, recent recencyLookup) float64 {
	n := len(combo)

	// Same-owner rejection: any pair sharing a non-empty email is self-play.
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if combo[i].email != "" && combo[i].email == combo[j].email {
				return 0
			}
		}
	}

	hasHuman := false
	hasStandard := false
	for _, c := range combo {
		hasHuman = hasHuman || c.isHuman
		hasStandard = hasStandard || c.isStandard
	}

	if hasStandard && !hasHuman {
		anyWaitedLongEnough := false
		for _, c := range combo {
			if c.timeInQueue > t.MinWaitForStandard {
				anyWaitedLongEnough = true
				break
			}
		}
		if !anyWaitedLongEnough {
			return 0
		}
	}

	maxEloDelta := 0.0
	recentMeetings := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			delta := math.Abs(combo[i].elo - combo[j].elo)
			if delta > maxEloDelta {
				maxEloDelta = delta
			}
			if delta > t.MaxEloDelta {
				return 0
			}
			recentMeetings += recent(combo[i].participantName, combo[j].participantName)
		}
	}

	maxPctQueue := 0.0
	for _, c := range combo {
		if c.pctQueue > maxPctQueue {
			maxPctQueue = c.pctQueue
		}
	}

	eloComponent := math.Pow(1-(maxEloDelta/t.MaxEloDelta), 2)
	timeComponent := t.PctTimeBase + maxPctQueue*(1-t.PctTimeBase)

	recentCap := float64(t.NumRecentGamesCap)
	recentComponent := 1 - math.Min(float64(recentMeetings), recentCap)/(2*recentCap)

	return eloComponent * timeComponent * recentComponent
}
