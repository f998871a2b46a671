package driver

import (
	"sync"
	"testing"

	"github.com/sublinear-mpc/matching/internal/mpc/exchange"
	"github.com/sublinear-mpc/matching/internal/mpc/hashing"
	"github.com/sublinear-mpc/matching/internal/mpc/phases"
	"github.com/sublinear-mpc/matching/internal/mpc/state"
)

// buildTestEngines partitions a literal edge list across p in-process
// ranks the way Graph IO would, mirroring internal/mpc/phases's own test
// harness; the driver package needs its own copy since the phases one is
// unexported.
func buildTestEngines(t *testing.T, seed int64, p, s, r int, edges [][2]int64) []*phases.Engine {
	t.Helper()
	hasher := hashing.New(seed)

	vertexSet := make(map[int64]struct{})
	for _, e := range edges {
		vertexSet[e[0]] = struct{}{}
		vertexSet[e[1]] = struct{}{}
	}

	type ownedEdge struct{ u, v, eid int64 }
	perRankEdges := make([][]ownedEdge, p)
	for _, e := range edges {
		u, v := e[0], e[1]
		if u == v {
			continue
		}
		eid := hasher.EID(u, v)
		owner := hasher.OwnerEdge(eid, p)
		perRankEdges[owner] = append(perRankEdges[owner], ownedEdge{u, v, eid})
	}

	ownedVertices := make([][]int64, p)
	for v := range vertexSet {
		owner := hasher.OwnerVertex(v, p)
		ownedVertices[owner] = append(ownedVertices[owner], v)
	}

	transports := exchange.NewLocalNetwork(p)
	engines := make([]*phases.Engine, p)
	for rank := 0; rank < p; rank++ {
		us := make([]int64, len(perRankEdges[rank]))
		vs := make([]int64, len(perRankEdges[rank]))
		eids := make([]int64, len(perRankEdges[rank]))
		for i, oe := range perRankEdges[rank] {
			us[i], vs[i], eids[i] = oe.u, oe.v, oe.eid
		}
		edgeState := state.NewEdgeState(us, vs, eids)

		builder := state.NewVertexAdjacencyBuilder(ownedVertices[rank])
		for i := 0; i < edgeState.Len(); i++ {
			builder.AddIncidence(edgeState.U[i], int32(i))
			builder.AddIncidence(edgeState.V[i], int32(i))
		}
		vertexState := builder.Build()

		engines[rank] = phases.NewEngine(phases.Params{S: s, R: r, P: p}, transports[rank], hasher, edgeState, vertexState)
	}
	return engines
}

func runConcurrently[T any](engines []*phases.Engine, fn func(rank int, e *phases.Engine) (T, error)) ([]T, error) {
	p := len(engines)
	results := make([]T, p)
	errs := make([]error, p)
	var wg sync.WaitGroup
	wg.Add(p)
	for r := 0; r < p; r++ {
		go func(r int) {
			defer wg.Done()
			res, err := fn(r, engines[r])
			results[r] = res
			errs[r] = err
		}(r)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func verifyMatching(t *testing.T, pairs []phases.MatchedPair) {
	t.Helper()
	seen := make(map[int64]bool)
	for _, pr := range pairs {
		if seen[pr.U] || seen[pr.V] {
			t.Fatalf("vertex appears in more than one matched pair: %+v", pr)
		}
		seen[pr.U] = true
		seen[pr.V] = true
	}
}
