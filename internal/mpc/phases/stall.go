package phases

import "math"

// StallThreshold computes T = max(2, ceil(S^(1/R))), the line-graph degree
// above which a participating edge is deferred for the rest of the phase.
func StallThreshold(s, r int) int {
	if r <= 0 {
		r = 1
	}
	t := int(math.Ceil(math.Pow(float64(s), 1.0/float64(r))))
	if t < 2 {
		t = 2
	}
	return t
}

// Stall defers every participating edge whose sparse line-graph degree
// exceeds T. Stalling is purely local (no exchange) and monotone within
// the phase: Edges.Stall only ever flips false -> true.
func (e *Engine) Stall(result SparsifyResult) {
	t := StallThreshold(e.S, e.R)
	for i, participating := range result.Participating {
		if !participating {
			continue
		}
		if int(result.DegInSparse[i]) > t {
			e.Edges.Stall(i)
			result.Participating[i] = false
		}
	}
}
