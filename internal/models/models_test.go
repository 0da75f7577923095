package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeFromRewards(t *testing.T) {
	assert.Equal(t, OutcomeWin, OutcomeFromRewards(1, -1, 1))
	assert.Equal(t, OutcomeLoss, OutcomeFromRewards(-1, -1, 1))
	assert.Equal(t, OutcomeDraw, OutcomeFromRewards(0, 0, 0))

	// Any reward strictly greater than the game's minimum counts as a win,
	// even if it isn't the game's maximum — only a reward tied with both
	// bounds (the all-equal case) counts as a draw.
	assert.Equal(t, OutcomeWin, OutcomeFromRewards(0, -1, 1))
}
