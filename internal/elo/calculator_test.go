package elo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKFactor(t *testing.T) {
	assert.Equal(t, HumanKFactor, KFactor(true, false, 0))
	assert.Equal(t, StandardModelKFactor, KFactor(false, true, 1000))
	assert.Equal(t, InitialK, KFactor(false, false, GamesThreshold-1))
	assert.Equal(t, ReducedK, KFactor(false, false, GamesThreshold))
	assert.Equal(t, ReducedK, KFactor(false, false, GamesThreshold+1))
}

func TestExpectedScore(t *testing.T) {
	assert.InDelta(t, 0.5, ExpectedScore(1000, 1000), 1e-9)
	assert.Greater(t, ExpectedScore(1200, 1000), 0.5)
	assert.Less(t, ExpectedScore(1000, 1200), 0.5)
}

func TestNewRating(t *testing.T) {
	// A win against an equally-rated opponent gains exactly K/2.
	got := NewRating(1000, 32, 1.0, 0.5)
	assert.InDelta(t, 1016, got, 1e-9)

	// A loss against an equally-rated opponent loses exactly K/2.
	got = NewRating(1000, 32, 0.0, 0.5)
	assert.InDelta(t, 984, got, 1e-9)

	// A draw leaves the rating unchanged.
	got = NewRating(1000, 32, 0.5, 0.5)
	assert.InDelta(t, 1000, got, 1e-9)
}

func TestScoreForOutcome(t *testing.T) {
	assert.Equal(t, 1.0, ScoreForOutcome(true, false))
	assert.Equal(t, 0.5, ScoreForOutcome(false, true))
	assert.Equal(t, 0.0, ScoreForOutcome(false, false))
}
