package matchmaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultTuning() Tuning {
	return Tuning{
		MaxEloDelta:        400,
		PctTimeBase:        0.5,
		NumRecentGamesCap:  25,
		MinWaitForStandard: 60,
	}
}

func noRecentMeetings(string, string) int { return 0 }

func TestMatchScoreRejectsSharedEmailSelfPlay(t *testing.T) {
	combo := []candidate{
		{participantName: "a", email: "same@example.com", elo: 1000},
		{participantName: "b", email: "same@example.com", elo: 1000},
	}
	assert.Zero(t, matchScore(combo, defaultTuning(), noRecentMeetings))
}

func TestMatchScoreRejectsEloDeltaBeyondMax(t *testing.T) {
	combo := []candidate{
		{participantName: "a", email: "a@example.com", elo: 1000},
		{participantName: "b", email: "b@example.com", elo: 1500},
	}
	assert.Zero(t, matchScore(combo, defaultTuning(), noRecentMeetings))
}

func TestMatchScoreGatesStandardWithoutHumanUntilMinWait(t *testing.T) {
	combo := []candidate{
		{participantName: "a", email: "a@example.com", elo: 1000, isStandard: true, timeInQueue: -1},
		{participantName: "b", email: "b@example.com", elo: 1000, timeInQueue: 10},
	}
	assert.Zero(t, matchScore(combo, defaultTuning(), noRecentMeetings))

	combo[1].timeInQueue = 120
	assert.Greater(t, matchScore(combo, defaultTuning(), noRecentMeetings), 0.0)
}

func TestMatchScoreAllowsStandardImmediatelyWithHuman(t *testing.T) {
	combo := []candidate{
		{participantName: "a", email: "a@example.com", elo: 1000, isStandard: true, timeInQueue: -1},
		{participantName: "b", email: "b@example.com", elo: 1000, isHuman: true, timeInQueue: 1},
	}
	assert.Greater(t, matchScore(combo, defaultTuning(), noRecentMeetings), 0.0)
}

func TestMatchScoreDecreasesWithEloDelta(t *testing.T) {
	close := []candidate{
		{participantName: "a", email: "a@example.com", elo: 1000},
		{participantName: "b", email: "b@example.com", elo: 1010},
	}
	far := []candidate{
		{participantName: "a", email: "a@example.com", elo: 1000},
		{participantName: "b", email: "c@example.com", elo: 1300},
	}
	assert.Greater(t, matchScore(close, defaultTuning(), noRecentMeetings), matchScore(far, defaultTuning(), noRecentMeetings))
}

func TestMatchScoreDecreasesWithRecentMeetings(t *testing.T) {
	combo := []candidate{
		{participantName: "a", email: "a@example.com", elo: 1000},
		{participantName: "b", email: "b@example.com", elo: 1000},
	}
	fresh := matchScore(combo, defaultTuning(), noRecentMeetings)
	stale := matchScore(combo, defaultTuning(), func(string, string) int { return 25 })
	assert.Greater(t, fresh, stale)
}

func TestCombinationsSize(t *testing.T) {
	items := []int{1, 2, 3, 4}
	combos := combinations(items, 2)
	assert.Len(t, combos, 6)
	for _, c := range combos {
		assert.Len(t, c, 2)
	}
}

func TestCombinationsRejectsOutOfRangeK(t *testing.T) {
	items := []int{1, 2}
	assert.Nil(t, combinations(items, 0))
	assert.Nil(t, combinations(items, 3))
}
