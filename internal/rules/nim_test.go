package rules

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNimEngineTakesLastStoneWins(t *testing.T) {
	e, err := NewNimEngine("Nim-v0", 2)
	require.NoError(t, err)
	require.Equal(t, 0, e.CurrentPlayer())

	for e.pile > 3 {
		res, err := e.Step("3")
		require.NoError(t, err)
		require.False(t, res.Done)
	}

	winner := e.CurrentPlayer()
	res, err := e.Step("3") // takes the 3 stones left in the pile
	require.NoError(t, err)
	require.True(t, res.Done)

	rewards, err := e.Close()
	require.NoError(t, err)
	require.Equal(t, 1.0, rewards[winner])
	for pid, r := range rewards {
		if pid != winner {
			require.Equal(t, -1.0, r)
		}
	}
}

func TestNimEngineInvalidActionDefaultsToOne(t *testing.T) {
	e, err := NewNimEngine("Nim-v0", 2)
	require.NoError(t, err)
	before := e.pile
	res, err := e.Step("banana")
	require.NoError(t, err)
	require.False(t, res.Done)
	require.Equal(t, before-1, e.pile)
}

func TestNimEngineRejectsTooFewPlayers(t *testing.T) {
	_, err := NewNimEngine("Nim-v0", 1)
	require.Error(t, err)
}

func TestNimEngineForceObservationIsReadOnly(t *testing.T) {
	e, err := NewNimEngine("Nim-v0", 2)
	require.NoError(t, err)
	before := e.pile
	_ = e.ForceObservation(0)
	require.Equal(t, before, e.pile)
	require.False(t, e.done)
}
