package phases

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sublinear-mpc/matching/internal/mpc/state"
	"github.com/sublinear-mpc/matching/pkg/parallel"
)

// Exponentiate grows, for every participating edge, the set of eids
// reachable within rounds hops of the line graph induced by H_s. The
// driver passes Engine.R in the normal phase loop; Finish's distributed
// fallback passes 1 regardless of the configured R. Once every round has
// succeeded, Exponentiate commits the grown balls to Engine.Edges via
// state.SetBalls, where Local MIS reads them; if a round fails, the
// previously committed balls are left untouched.
func (e *Engine) Exponentiate(ctx context.Context, participating []bool, rounds int) error {
	n := e.Edges.Len()
	balls := make([][]int64, n)
	for i, p := range participating {
		if p {
			balls[i] = []int64{e.Edges.EIDs[i]}
		}
	}

	for round := 0; round < rounds; round++ {
		if err := e.exponentiateRound(ctx, participating, balls); err != nil {
			return err
		}
	}

	state.SetBalls(e.Edges, balls)
	return nil
}

func (e *Engine) exponentiateRound(ctx context.Context, participating []bool, balls [][]int64) error {
	ctx, span := otel.Tracer("mpc-matching").Start(ctx, "exponentiate.round",
		trace.WithAttributes(attribute.Int("rank", e.Rank)))
	defer span.End()

	n := e.Edges.Len()

	// Step 1: edge -> owner_vertex(x): (x, eid, ball).
	toVertex := make([][]byte, e.P)
	for i := 0; i < n; i++ {
		if !participating[i] {
			continue
		}
		eid := e.Edges.EIDs[i]
		for _, x := range [2]int64{e.Edges.U[i], e.Edges.V[i]} {
			dst := e.Hasher.OwnerVertex(x, e.P)
			buf := toVertex[dst]
			buf = appendI64(buf, x)
			buf = appendI64(buf, eid)
			buf = appendI64Slice(buf, balls[i])
			toVertex[dst] = buf
		}
	}

	recvAtVertex, m, err := e.Transport.Exchange(ctx, toVertex)
	e.roundMetrics.Add(m)
	if err != nil {
		return err
	}

	superBall := make(map[int32]map[int64]struct{})
	subscribers := make(map[int32]map[int64]struct{})
	for _, buf := range recvAtVertex {
		for len(buf) > 0 {
			var x, eid int64
			var ball []int64
			x, buf = readI64(buf)
			eid, buf = readI64(buf)
			ball, buf = readI64Slice(buf)

			vIdx, ok := e.Vertices.IndexOf(x)
			if !ok {
				continue
			}
			set, ok := superBall[vIdx]
			if !ok {
				set = make(map[int64]struct{})
				superBall[vIdx] = set
			}
			for _, id := range ball {
				set[id] = struct{}{}
			}
			subs, ok := subscribers[vIdx]
			if !ok {
				subs = make(map[int64]struct{})
				subscribers[vIdx] = subs
			}
			subs[eid] = struct{}{}
		}
	}

	// (ii) local incident edges of v that are themselves participating.
	for vIdx, set := range superBall {
		for _, localEdge := range e.Vertices.IncidentEdges(vIdx) {
			if int(localEdge) < n && participating[localEdge] {
				set[e.Edges.EIDs[localEdge]] = struct{}{}
			}
		}
	}

	// Step 3: vertex -> owner_edge(eid): (eid, super_ball).
	toEdge := make([][]byte, e.P)
	for vIdx, subs := range subscribers {
		flat := make([]int64, 0, len(superBall[vIdx]))
		for id := range superBall[vIdx] {
			flat = append(flat, id)
		}
		sort.Slice(flat, func(a, b int) bool { return flat[a] < flat[b] })
		for eid := range subs {
			dst := e.Hasher.OwnerEdge(eid, e.P)
			buf := toEdge[dst]
			buf = appendI64(buf, eid)
			buf = appendI64Slice(buf, flat)
			toEdge[dst] = buf
		}
	}

	recvAtEdge, m2, err := e.Transport.Exchange(ctx, toEdge)
	e.roundMetrics.Add(m2)
	if err != nil {
		return err
	}

	// Step 4: merge and check. Several buffers can carry entries for the
	// same eid (it has two endpoints, each possibly forwarded by a
	// different owner vertex), so incoming ids are grouped by local index
	// before the per-edge dedup/cap check runs; every group then owns a
	// distinct slot of balls and can merge concurrently.
	incomingByIdx := make(map[int][]int64)
	for _, buf := range recvAtEdge {
		for len(buf) > 0 {
			var eid int64
			var incoming []int64
			eid, buf = readI64(buf)
			incoming, buf = readI64Slice(buf)

			idx, ok := e.Edges.IndexOf(eid)
			if !ok {
				continue
			}
			incomingByIdx[idx] = append(incomingByIdx[idx], incoming...)
		}
	}

	type mergeJob struct {
		idx      int
		incoming []int64
	}
	jobs := make([]mergeJob, 0, len(incomingByIdx))
	for idx, incoming := range incomingByIdx {
		jobs = append(jobs, mergeJob{idx: idx, incoming: incoming})
	}

	_, err = parallel.ForEach(ctx, jobs, parallel.DefaultPoolConfig(), func(_ context.Context, job mergeJob) error {
		merged := dedupSorted(append(append([]int64{}, balls[job.idx]...), job.incoming...))
		if len(merged) > e.S {
			return &MemoryCapError{EID: e.Edges.EIDs[job.idx], Size: len(merged), Cap: e.S, Where: "exponentiate"}
		}
		balls[job.idx] = merged
		return nil
	})
	return err
}

func dedupSorted(in []int64) []int64 {
	sort.Slice(in, func(a, b int) bool { return in[a] < in[b] })
	out := in[:0]
	var last int64
	first := true
	for _, v := range in {
		if first || v != last {
			out = append(out, v)
			last = v
			first = false
		}
	}
	return out
}
