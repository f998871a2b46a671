package phases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sublinear-mpc/matching/internal/mpc/state"
)

func TestIntegrate_TriangleProducesValidMatching(t *testing.T) {
	engines := buildTestEngines(t, 3, 2, 1000, 3, triangleEdges())

	// Every edge's ball must span the whole triangle (not just this
	// rank's local share of it) for the single-winner property to hold.
	var allEIDs []int64
	for _, e := range engines {
		allEIDs = append(allEIDs, e.Edges.EIDs...)
	}
	for _, e := range engines {
		balls := make([][]int64, e.Edges.Len())
		for i := range balls {
			balls[i] = append([]int64{}, allEIDs...)
		}
		state.SetBalls(e.Edges, balls)
	}

	results, err := runConcurrently(engines, func(rank int, e *Engine) ([]MatchedPair, error) {
		participating := make([]bool, e.Edges.Len())
		for i := range participating {
			participating[i] = true
		}
		mis := e.LocalMIS(0, participating)
		return e.Integrate(context.Background(), mis)
	})
	require.NoError(t, err)

	var all []MatchedPair
	for _, pairs := range results {
		all = append(all, pairs...)
	}
	require.Len(t, all, 1)

	seen := make(map[int64]bool)
	for _, pr := range all {
		assert.False(t, seen[pr.U])
		assert.False(t, seen[pr.V])
		seen[pr.U] = true
		seen[pr.V] = true
	}
}

func TestIntegrate_ChosenEdgeBecomesInactive(t *testing.T) {
	engines := buildTestEngines(t, 1, 1, 1000, 3, [][2]int64{{0, 1}})
	e := engines[0]
	state.SetBalls(e.Edges, [][]int64{{e.Edges.EIDs[0]}})

	mis := e.LocalMIS(0, []bool{true})
	require.True(t, mis.Chosen[0])

	pairs, err := e.Integrate(context.Background(), mis)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.False(t, e.Edges.Active(0))
}
