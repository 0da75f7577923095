package matchmaker

import "go.mongodb.org/mongo-driver/bson/primitive"

// candidate is one queued or always-available participant considered for a
// match in one environment tick.
type candidate struct {
	participantName string
	email           string
	elo             float64
	timeInQueue     float64 // seconds; -1 for a Standard participant (always available)
	pctQueue        float64 // timeInQueue / time_limit; 0 for Standard
	isHuman         bool
	isStandard      bool
	humanIP         string

	// queueEntryID is nil for a synthesized Standard candidate, which has no
	// backing queue row to delete on match.
	queueEntryID *primitive.ObjectID
}

// combinations returns every k-sized subset of items, in itertools-style
// lexicographic order over the (already shuffled) input slice.
func combinations[T any](items []T, k int) [][]T {
	n := len(items)
	if k <= 0 || k > n {
		return nil
	}

	var out [][]T
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}

	for {
		combo := make([]T, k)
		for i, ix := range idx {
			combo[i] = items[ix]
		}
		out = append(out, combo)

		i := k - 1
		for i >= 0 && idx[i] == i+n-k {
			i--
		}
		if i < 0 {
			break
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}

	return out
}
