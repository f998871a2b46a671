package phases

import "context"

// DefaultFinishFactor is the default multiplier applied to S to size the
// guarded-gather threshold T = S * factor in Finish.
const DefaultFinishFactor = 100000.0

// maxFallbackPhases bounds the distributed fallback: Finish runs at most
// this many additional full-participation, single-round phases; after
// them, a residual at or under the gather threshold is gathered to rank 0
// for the greedy pass, and any larger residual is left unmatched.
const maxFallbackPhases = 5

// GlobalActiveCount all-reduces the number of active edges across every
// rank, using the same Transport.Exchange primitive every other
// collective in this package uses.
func (e *Engine) GlobalActiveCount(ctx context.Context) (int64, error) {
	local := int64(e.Edges.ActiveCount())
	send := make([][]byte, e.P)
	for dst := range send {
		send[dst] = appendI64(nil, local)
	}
	recv, m, err := e.Transport.Exchange(ctx, send)
	e.roundMetrics.Add(m)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, buf := range recv {
		v, _ := readI64(buf)
		total += v
	}
	return total, nil
}

// FinishResult is the outcome of Finish.
type FinishResult struct {
	Pairs        []MatchedPair // only populated on rank 0
	UsedGather   bool
	UsedFallback bool
}

// Finish runs once the driver's main phase loop exhausts MAX_PHASES or
// drains active edges to a small residual: if nothing remains it returns
// immediately; if the residual is small relative to S it gathers every
// remaining edge to rank 0 for a sequential greedy pass; otherwise it
// keeps running full-participation, single-round phases locally (no
// sampling, no stalling) until the graph drains or the fallback budget is
// exhausted.
func (e *Engine) Finish(ctx context.Context, factor float64) (FinishResult, error) {
	if factor <= 0 {
		factor = DefaultFinishFactor
	}
	threshold := int64(float64(e.S) * factor)

	global, err := e.GlobalActiveCount(ctx)
	if err != nil {
		return FinishResult{}, err
	}
	if global == 0 {
		return FinishResult{}, nil
	}

	if global <= threshold {
		pairs, err := e.gatherAndGreedy(ctx)
		if err != nil {
			return FinishResult{}, err
		}
		return FinishResult{Pairs: pairs, UsedGather: true}, nil
	}

	var allPairs []MatchedPair
	for round := 0; round < maxFallbackPhases; round++ {
		global, err := e.GlobalActiveCount(ctx)
		if err != nil {
			return FinishResult{}, err
		}
		if global == 0 {
			break
		}

		participating := make([]bool, e.Edges.Len())
		for i := range participating {
			participating[i] = e.Edges.Active(i)
		}

		if err := e.Exponentiate(ctx, participating, 1); err != nil {
			return FinishResult{}, err
		}
		mis := e.LocalMIS(-1-round, participating)
		pairs, err := e.Integrate(ctx, mis)
		if err != nil {
			return FinishResult{}, err
		}
		allPairs = append(allPairs, pairs...)
	}

	global, err = e.GlobalActiveCount(ctx)
	if err != nil {
		return FinishResult{}, err
	}
	if global > 0 && global <= threshold {
		gathered, err := e.gatherAndGreedy(ctx)
		if err != nil {
			return FinishResult{}, err
		}
		allPairs = append(allPairs, gathered...)
	}

	return FinishResult{Pairs: allPairs, UsedFallback: true}, nil
}

// gatherAndGreedy sends every active edge this rank owns to rank 0, which
// runs a sequential greedy scan (skip an edge if either endpoint is
// already matched) to finish off the residual graph. Non-root ranks
// return nil.
func (e *Engine) gatherAndGreedy(ctx context.Context) ([]MatchedPair, error) {
	send := make([][]byte, e.P)
	n := e.Edges.Len()
	for i := 0; i < n; i++ {
		if !e.Edges.Active(i) {
			continue
		}
		buf := send[0]
		buf = appendI64(buf, e.Edges.U[i])
		buf = appendI64(buf, e.Edges.V[i])
		send[0] = buf
	}

	recv, m, err := e.Transport.Exchange(ctx, send)
	e.roundMetrics.Add(m)
	if err != nil {
		return nil, err
	}
	if e.Rank != 0 {
		return nil, nil
	}

	matched := make(map[int64]struct{})
	var pairs []MatchedPair
	for _, buf := range recv {
		for len(buf) > 0 {
			var u, v int64
			u, buf = readI64(buf)
			v, buf = readI64(buf)
			_, uMatched := matched[u]
			_, vMatched := matched[v]
			if uMatched || vMatched {
				continue
			}
			matched[u] = struct{}{}
			matched[v] = struct{}{}
			pairs = append(pairs, MatchedPair{U: u, V: v})
		}
	}
	return pairs, nil
}
