package detect

import "sort"

// Arbitrate selects the best candidate by confidence. The sort is stable,
// so among equal confidences the first-discovered producer wins; the
// orchestrator runs producers in a fixed order. The remainder is
// attached as Alternatives in descending confidence.
func Arbitrate(candidates []Attribution) *Attribution {
	if len(candidates) == 0 {
		return nil
	}

	ranked := make([]Attribution, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	best := ranked[0]
	if len(ranked) > 1 {
		best.Alternatives = ranked[1:]
	}
	return &best
}
