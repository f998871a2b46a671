package phases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangleEdges() [][2]int64 {
	return [][2]int64{{0, 1}, {1, 2}, {2, 0}}
}

func TestSparsify_FullParticipationComputesLineGraphDegree(t *testing.T) {
	engines := buildTestEngines(t, 1, 2, 1000, 3, triangleEdges())

	results, err := runConcurrently(engines, func(rank int, e *Engine) (SparsifyResult, error) {
		return e.Sparsify(context.Background(), 0, 1.0)
	})
	require.NoError(t, err)

	// Every edge in a triangle has line-graph degree 2 (it shares an
	// endpoint with each of the other two edges).
	for rank, e := range engines {
		for i := 0; i < e.Edges.Len(); i++ {
			if !results[rank].Participating[i] {
				continue
			}
			assert.Equal(t, int32(2), results[rank].DegInSparse[i])
		}
	}
}

func TestSparsify_IdempotentAtPOneWithNoStalled(t *testing.T) {
	engines := buildTestEngines(t, 7, 2, 1000, 3, triangleEdges())

	first, err := runConcurrently(engines, func(rank int, e *Engine) (SparsifyResult, error) {
		return e.Sparsify(context.Background(), 0, 1.0)
	})
	require.NoError(t, err)

	second, err := runConcurrently(engines, func(rank int, e *Engine) (SparsifyResult, error) {
		return e.Sparsify(context.Background(), 0, 1.0)
	})
	require.NoError(t, err)

	for rank := range engines {
		assert.Equal(t, first[rank].DegInSparse, second[rank].DegInSparse)
		assert.Equal(t, first[rank].Participating, second[rank].Participating)
	}
}

func TestSparsify_DeterministicAcrossRanksForSameEdge(t *testing.T) {
	// Running the same seed/phase/p twice, independently, must choose the
	// same participation for the same eid: no coordination should be
	// required for the sampling decision to agree.
	engines1 := buildTestEngines(t, 42, 2, 1000, 3, triangleEdges())
	engines2 := buildTestEngines(t, 42, 2, 1000, 3, triangleEdges())

	r1, err := runConcurrently(engines1, func(rank int, e *Engine) (SparsifyResult, error) {
		return e.Sparsify(context.Background(), 3, 0.5)
	})
	require.NoError(t, err)
	r2, err := runConcurrently(engines2, func(rank int, e *Engine) (SparsifyResult, error) {
		return e.Sparsify(context.Background(), 3, 0.5)
	})
	require.NoError(t, err)

	for rank := range engines1 {
		assert.Equal(t, r1[rank].Participating, r2[rank].Participating)
	}
}
