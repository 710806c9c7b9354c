package matcher

import (
	"sort"

	"github.com/hetulpatel/sportsarb/internal/collectors"
	"github.com/hetulpatel/sportsarb/internal/logging"
)

// Pair is a match listed on both venues with a full set of prices.
type Pair struct {
	Key string
	// A is the Polymarket entry, B the Kalshi one.
	A collectors.Entry
	B collectors.Entry
	// Outcomes holds the two shared names in lexicographic order.
	Outcomes [2]string
}

// Match joins the two venues' entries on match key. A key survives only if
// both entries price exactly two outcomes and those outcomes are the same
// two names. Pairs are returned in key order.
func Match(a, b map[string]collectors.Entry) []Pair {
	keys := make([]string, 0, len(a))
	for k := range a {
		if _, ok := b[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		ea, eb := a[k], b[k]
		outcomes, ok := sharedOutcomes(ea, eb)
		if !ok {
			logging.Debugf("[matcher] drop %s (%s): outcomes do not line up", ea.Question, k[:min(len(k), 12)])
			continue
		}
		pairs = append(pairs, Pair{Key: k, A: ea, B: eb, Outcomes: outcomes})
	}
	return pairs
}

func sharedOutcomes(a, b collectors.Entry) ([2]string, bool) {
	na, nb := a.PricedNames(), b.PricedNames()
	if len(na) != 2 || len(nb) != 2 {
		return [2]string{}, false
	}
	if na[0] != nb[0] || na[1] != nb[1] {
		return [2]string{}, false
	}
	return [2]string{na[0], na[1]}, true
}
