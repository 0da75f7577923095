package agent

import (
	"regexp"
	"strconv"
)

var pileRe = regexp.MustCompile(`(\d+) stones`)

// NimAgent is the reference Standard participant for the Nim reference
// rules engine: it parses the pile size out of the observation text and
// plays the textbook optimal strategy (always leave a multiple of 4),
// falling back to taking one stone when the pile is already a multiple of 4
// or the pile size can't be parsed out of an unfamiliar observation.
type NimAgent struct{}

func NewNimAgent() *NimAgent { return &NimAgent{} }

func (NimAgent) Act(observation string) (string, error) {
	m := pileRe.FindStringSubmatch(observation)
	if m == nil {
		return "1", nil
	}
	pile, err := strconv.Atoi(m[1])
	if err != nil {
		return "1", nil
	}

	remainder := pile % 4
	if remainder == 0 {
		return "1", nil
	}
	return strconv.Itoa(remainder), nil
}
