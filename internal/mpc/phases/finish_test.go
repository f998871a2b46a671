package phases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalActiveCount_SumsAcrossRanks(t *testing.T) {
	engines := buildTestEngines(t, 1, 2, 1000, 3, triangleEdges())

	counts, err := runConcurrently(engines, func(rank int, e *Engine) (int64, error) {
		return e.GlobalActiveCount(context.Background())
	})
	require.NoError(t, err)

	for _, c := range counts {
		assert.Equal(t, int64(3), c)
	}
}

func TestFinish_EmptyGraphReturnsImmediately(t *testing.T) {
	engines := buildTestEngines(t, 1, 2, 1000, 3, [][2]int64{{0, 1}})
	for _, e := range engines {
		for i := 0; i < e.Edges.Len(); i++ {
			e.Edges.Deactivate(i)
		}
	}

	results, err := runConcurrently(engines, func(rank int, e *Engine) (FinishResult, error) {
		return e.Finish(context.Background(), DefaultFinishFactor)
	})
	require.NoError(t, err)
	for _, r := range results {
		assert.Empty(t, r.Pairs)
		assert.False(t, r.UsedGather)
		assert.False(t, r.UsedFallback)
	}
}

func TestFinish_SmallResidualUsesGuardedGather(t *testing.T) {
	engines := buildTestEngines(t, 1, 2, 1000, 3, triangleEdges())

	results, err := runConcurrently(engines, func(rank int, e *Engine) (FinishResult, error) {
		return e.Finish(context.Background(), DefaultFinishFactor)
	})
	require.NoError(t, err)

	var all []MatchedPair
	rootUsedGather := false
	for rank, r := range results {
		all = append(all, r.Pairs...)
		if rank == 0 {
			rootUsedGather = r.UsedGather
		}
	}
	assert.True(t, rootUsedGather)
	assert.Len(t, all, 1)

	seen := make(map[int64]bool)
	for _, pr := range all {
		assert.False(t, seen[pr.U])
		assert.False(t, seen[pr.V])
		seen[pr.U] = true
		seen[pr.V] = true
	}
}
