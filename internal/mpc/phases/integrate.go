package phases

import "context"

// MatchedPair is one edge committed to the matching.
type MatchedPair struct {
	U, V int64
}

// Integrate commits the edges Local MIS chose: it deactivates them,
// announces their endpoints as matched, and prunes every other active
// edge that touches a newly matched vertex. It returns the pairs this
// rank's owned edges contributed to the matching this phase.
func (e *Engine) Integrate(ctx context.Context, mis LocalMISResult) ([]MatchedPair, error) {
	n := e.Edges.Len()
	var pairs []MatchedPair

	// Step 1: announce matched vertices.
	toVertex := make([][]byte, e.P)
	for i := 0; i < n; i++ {
		if !mis.Chosen[i] {
			continue
		}
		u, v := e.Edges.U[i], e.Edges.V[i]
		pairs = append(pairs, MatchedPair{U: u, V: v})
		e.Edges.MatchedEdge[i] = true
		e.Edges.Deactivate(i)

		for _, endpoint := range [2]int64{u, v} {
			dst := e.Hasher.OwnerVertex(endpoint, e.P)
			toVertex[dst] = appendI64(toVertex[dst], endpoint)
		}
	}

	recvMatched, m, err := e.Transport.Exchange(ctx, toVertex)
	e.roundMetrics.Add(m)
	if err != nil {
		return nil, err
	}

	matchedVertex := make(map[int64]struct{})
	for _, buf := range recvMatched {
		for len(buf) > 0 {
			var v int64
			v, buf = readI64(buf)
			matchedVertex[v] = struct{}{}
		}
	}

	// Step 2: query residual edges.
	toVertexQuery := make([][]byte, e.P)
	for i := 0; i < n; i++ {
		if !e.Edges.Active(i) {
			continue
		}
		eid := e.Edges.EIDs[i]
		for _, endpoint := range [2]int64{e.Edges.U[i], e.Edges.V[i]} {
			dst := e.Hasher.OwnerVertex(endpoint, e.P)
			buf := toVertexQuery[dst]
			buf = appendI64(buf, endpoint)
			buf = appendI64(buf, eid)
			toVertexQuery[dst] = buf
		}
	}

	recvQueries, m2, err := e.Transport.Exchange(ctx, toVertexQuery)
	e.roundMetrics.Add(m2)
	if err != nil {
		return nil, err
	}

	// Step 3: kill response.
	toEdgeKill := make([][]byte, e.P)
	for _, buf := range recvQueries {
		for len(buf) > 0 {
			var endpoint, eid int64
			endpoint, buf = readI64(buf)
			eid, buf = readI64(buf)
			if _, killed := matchedVertex[endpoint]; killed {
				dst := e.Hasher.OwnerEdge(eid, e.P)
				toEdgeKill[dst] = appendI64(toEdgeKill[dst], eid)
			}
		}
	}

	recvKills, m3, err := e.Transport.Exchange(ctx, toEdgeKill)
	e.roundMetrics.Add(m3)
	if err != nil {
		return nil, err
	}

	for _, buf := range recvKills {
		for len(buf) > 0 {
			var eid int64
			eid, buf = readI64(buf)
			// Unknown eids (already pruned via the other endpoint) are
			// silently ignored, per the kill-response failure semantics.
			if idx, ok := e.Edges.IndexOf(eid); ok {
				e.Edges.Deactivate(int(idx))
			}
		}
	}

	return pairs, nil
}
