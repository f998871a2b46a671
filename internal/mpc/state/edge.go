// Package state holds the per-rank struct-of-arrays edge state and CSR
// vertex adjacency that every phase component reads and mutates in place.
package state

import (
	"sort"

	"github.com/sublinear-mpc/matching/pkg/collections"
)

// EdgeState is the struct-of-arrays representation of every edge owned by
// this rank. All slices are parallel and indexed by local edge index;
// idToIndex resolves an incoming eid reference to that index in O(1).
//
// active transitions only true->false within a phase; stalled transitions
// only false->true within a phase. Both are represented as bitsets rather
// than []bool to keep the per-edge footprint small when S is large.
type EdgeState struct {
	U, V []int64 // canonical endpoints, U[i] < V[i]
	EIDs []int64

	active  *collections.Bitset // bit set => edge still in the graph
	stalled *collections.Bitset // bit set => deferred for the current phase

	DegInSparse []int32 // line-graph degree in the current sparse subgraph
	MatchedEdge []bool  // true once Integrate commits this edge to the matching

	// Ball CSR, replaced wholesale by SetBalls once an Exponentiate call's
	// rounds have all succeeded.
	BallOffsets []int32
	BallStorage []int64

	idToIndex map[int64]int32
}

// NewEdgeState allocates an EdgeState for the given edge list. u, v, and
// eid must be parallel slices of equal length; endpoints are canonicalised
// (u < v) in place.
func NewEdgeState(u, v, eid []int64) *EdgeState {
	n := len(eid)
	es := &EdgeState{
		U:           make([]int64, n),
		V:           make([]int64, n),
		EIDs:        make([]int64, n),
		active:      collections.NewBitset(n),
		stalled:     collections.NewBitset(n),
		DegInSparse: make([]int32, n),
		MatchedEdge: make([]bool, n),
		idToIndex:   make(map[int64]int32, n),
	}
	for i := 0; i < n; i++ {
		a, b := u[i], v[i]
		if a > b {
			a, b = b, a
		}
		es.U[i] = a
		es.V[i] = b
		es.EIDs[i] = eid[i]
		es.active.Set(i)
		es.idToIndex[eid[i]] = int32(i)
	}
	return es
}

// Len returns the number of edges owned by this rank.
func (es *EdgeState) Len() int { return len(es.EIDs) }

// IndexOf resolves a global eid to a local index, reporting false if the
// rank does not own that edge.
func (es *EdgeState) IndexOf(eid int64) (int32, bool) {
	idx, ok := es.idToIndex[eid]
	return idx, ok
}

// Active reports whether edge i is still part of the graph.
func (es *EdgeState) Active(i int) bool { return es.active.Test(i) }

// Deactivate flips edge i's active flag to false. Monotone: calling it
// more than once is a no-op, never a resurrection.
func (es *EdgeState) Deactivate(i int) { es.active.Clear(i) }

// Stalled reports whether edge i has been deferred in the current phase.
func (es *EdgeState) Stalled(i int) bool { return es.stalled.Test(i) }

// Stall marks edge i as stalled for the remainder of the current phase.
func (es *EdgeState) Stall(i int) { es.stalled.Set(i) }

// ResetStalls clears every stall flag; called once at the start of each
// new phase, since stalling is only monotone *within* a phase.
func (es *EdgeState) ResetStalls() {
	es.stalled = collections.NewBitset(es.Len())
}

// ActiveCount returns the number of edges still active on this rank.
func (es *EdgeState) ActiveCount() int { return es.active.Count() }

// Ball returns the sorted, deduplicated set of eids reachable from local
// edge index i after the most recent Exponentiate call.
func (es *EdgeState) Ball(i int) []int64 {
	start, end := es.BallOffsets[i], es.BallOffsets[i+1]
	return es.BallStorage[start:end]
}

// SetBalls installs a freshly computed ball CSR, replacing whatever the
// previous phase left behind. ballsByEdge[i] need not be pre-sorted; it is
// sorted and deduplicated here.
func SetBalls(es *EdgeState, ballsByEdge [][]int64) {
	n := len(ballsByEdge)
	offsets := make([]int32, n+1)
	total := int32(0)
	for i, b := range ballsByEdge {
		sort.Slice(b, func(x, y int) bool { return b[x] < b[y] })
		b = dedupSorted(b)
		ballsByEdge[i] = b
		total += int32(len(b))
		offsets[i+1] = total
	}
	storage := make([]int64, 0, total)
	for _, b := range ballsByEdge {
		storage = append(storage, b...)
	}
	es.BallOffsets = offsets
	es.BallStorage = storage
}

func dedupSorted(in []int64) []int64 {
	if len(in) == 0 {
		return in
	}
	out := in[:1]
	for _, v := range in[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
