package phases

import "context"

// SparsifyResult is the per-phase output of Sparsify: which local edges
// were sampled into this phase's sparse subgraph H_s, and each sampled
// edge's line-graph degree within H_s.
type SparsifyResult struct {
	Participating []bool  // indexed by local edge index
	DegInSparse   []int32 // indexed by local edge index; 0 where !Participating
}

// Sparsify samples active, non-stalled edges into H_s with probability p
// (identically on every rank, via the keyed hash, with no coordination),
// then computes each sampled edge's line-graph degree deg_L(e) = d_u +
// d_v - 2 via the two-hop vertex-mediated tally described in the design.
func (e *Engine) Sparsify(ctx context.Context, phase int, p float64) (SparsifyResult, error) {
	n := e.Edges.Len()
	result := SparsifyResult{
		Participating: make([]bool, n),
		DegInSparse:   make([]int32, n),
	}
	for i := 0; i < n; i++ {
		if !e.Edges.Active(i) || e.Edges.Stalled(i) {
			continue
		}
		if e.Hasher.SampleAccept(e.Edges.EIDs[i], int64(phase), 0, p) {
			result.Participating[i] = true
		}
	}

	// Step 1: edge owner -> owner_vertex(endpoint): (endpoint, eid).
	toVertex := make([][]byte, e.P)
	for i := 0; i < n; i++ {
		if !result.Participating[i] {
			continue
		}
		eid := e.Edges.EIDs[i]
		for _, endpoint := range [2]int64{e.Edges.U[i], e.Edges.V[i]} {
			dst := e.Hasher.OwnerVertex(endpoint, e.P)
			buf := toVertex[dst]
			buf = appendI64(buf, endpoint)
			buf = appendI64(buf, eid)
			toVertex[dst] = buf
		}
	}

	recvAtVertex, m, err := e.Transport.Exchange(ctx, toVertex)
	e.roundMetrics.Add(m)
	if err != nil {
		return SparsifyResult{}, err
	}

	// Decode every (endpoint, eid) request once, tallying d_x per owned
	// vertex as we go; degrees are only final once every sender's
	// message has been scanned, so the replies are built from the
	// decoded requests rather than by re-scanning the wire buffers.
	type request struct{ endpoint, eid int64 }
	var requests []request
	degByVertex := make(map[int64]int32)
	for _, buf := range recvAtVertex {
		for len(buf) > 0 {
			var endpoint, eid int64
			endpoint, buf = readI64(buf)
			eid, buf = readI64(buf)
			degByVertex[endpoint]++
			requests = append(requests, request{endpoint, eid})
		}
	}

	toEdge := make([][]byte, e.P)
	for _, req := range requests {
		d := degByVertex[req.endpoint]
		dst := e.Hasher.OwnerEdge(req.eid, e.P)
		toEdge[dst] = appendI32(appendI64(toEdge[dst], req.eid), d)
	}

	recvAtEdge, m2, err := e.Transport.Exchange(ctx, toEdge)
	e.roundMetrics.Add(m2)
	if err != nil {
		return SparsifyResult{}, err
	}

	degSum := make(map[int64]int32)
	for _, buf := range recvAtEdge {
		for len(buf) > 0 {
			var eid int64
			var d int32
			eid, buf = readI64(buf)
			d, buf = readI32(buf)
			degSum[eid] += d
		}
	}

	for i := 0; i < n; i++ {
		if !result.Participating[i] {
			continue
		}
		d := degSum[e.Edges.EIDs[i]] - 2
		if d < 0 {
			d = 0
		}
		result.DegInSparse[i] = d
	}
	copy(e.Edges.DegInSparse, result.DegInSparse)

	return result, nil
}
