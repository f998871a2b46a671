package phases

// LocalMISResult is the per-phase output of Local MIS: which local edges
// were selected into the matching this phase.
type LocalMISResult struct {
	Chosen []bool // indexed by local edge index
}

// SelectionRate returns the fraction of participating edges chosen.
func (r LocalMISResult) SelectionRate(participating []bool) float64 {
	total, chosen := 0, 0
	for i, p := range participating {
		if !p {
			continue
		}
		total++
		if r.Chosen[i] {
			chosen++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(chosen) / float64(total)
}

// LocalMIS selects edge e iff priority(eid(e), phase) is strictly greater
// than the priority of every other eid in ball(e), ties broken toward the
// larger eid. Balls are symmetric, so this is a correct local decision for
// a maximal independent set over the (stalled-pruned) line graph: no two
// edges that lie in each other's balls can both win.
func (e *Engine) LocalMIS(phase int, participating []bool) LocalMISResult {
	n := e.Edges.Len()
	result := LocalMISResult{Chosen: make([]bool, n)}

	for i := 0; i < n; i++ {
		if !participating[i] {
			continue
		}
		myEID := e.Edges.EIDs[i]
		myPriority := e.Hasher.Priority(myEID, phase)

		wins := true
		for _, other := range e.Edges.Ball(i) {
			if other == myEID {
				continue
			}
			otherPriority := e.Hasher.Priority(other, phase)
			if otherPriority > myPriority || (otherPriority == myPriority && other > myEID) {
				wins = false
				break
			}
		}
		result.Chosen[i] = wins
	}

	return result
}
