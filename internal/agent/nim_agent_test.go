package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNimAgentLeavesAMultipleOfFour(t *testing.T) {
	a := NimAgent{}
	action, err := a.Act("Pile has 21 stones. It is player 0's turn. Remove 1, 2, or 3 stones by replying with that number.")
	require.NoError(t, err)
	assert.Equal(t, "1", action) // 21 % 4 == 1

	action, err = a.Act("Pile has 18 stones. It is player 1's turn.")
	require.NoError(t, err)
	assert.Equal(t, "2", action) // 18 % 4 == 2
}

func TestNimAgentOnExactMultipleTakesOne(t *testing.T) {
	a := NimAgent{}
	action, err := a.Act("Pile has 20 stones. It is player 0's turn.")
	require.NoError(t, err)
	assert.Equal(t, "1", action)
}

func TestNimAgentFallsBackOnUnparseableObservation(t *testing.T) {
	a := NimAgent{}
	action, err := a.Act("something unexpected")
	require.NoError(t, err)
	assert.Equal(t, "1", action)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("StandardNim")
	assert.False(t, ok)

	r.Register("StandardNim", NewNimAgent())
	got, ok := r.Get("StandardNim")
	assert.True(t, ok)
	assert.NotNil(t, got)
}
