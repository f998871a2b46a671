package phases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentiate_ZeroRoundsLeavesSingletonBalls(t *testing.T) {
	engines := buildTestEngines(t, 1, 2, 1000, 0, triangleEdges())

	_, err := runConcurrently(engines, func(rank int, e *Engine) (struct{}, error) {
		participating := make([]bool, e.Edges.Len())
		for i := range participating {
			participating[i] = true
		}
		return struct{}{}, e.Exponentiate(context.Background(), participating, 0)
	})
	require.NoError(t, err)

	for _, e := range engines {
		for i := 0; i < e.Edges.Len(); i++ {
			assert.Equal(t, []int64{e.Edges.EIDs[i]}, e.Edges.Ball(i))
		}
	}
}

func TestExponentiate_TriangleBallsReachAllThreeEdgesAfterOneRound(t *testing.T) {
	engines := buildTestEngines(t, 1, 2, 1000, 1, triangleEdges())

	_, err := runConcurrently(engines, func(rank int, e *Engine) (struct{}, error) {
		participating := make([]bool, e.Edges.Len())
		for i := range participating {
			participating[i] = true
		}
		return struct{}{}, e.Exponentiate(context.Background(), participating, 1)
	})
	require.NoError(t, err)

	for _, e := range engines {
		for i := 0; i < e.Edges.Len(); i++ {
			assert.Len(t, e.Edges.Ball(i), 3)
		}
	}
}

func TestExponentiate_BallSymmetry(t *testing.T) {
	// If f is in ball(e) then e must be in ball(f); check across the full
	// triangle after one round of growth.
	engines := buildTestEngines(t, 9, 2, 1000, 1, triangleEdges())

	_, err := runConcurrently(engines, func(rank int, e *Engine) (struct{}, error) {
		participating := make([]bool, e.Edges.Len())
		for i := range participating {
			participating[i] = true
		}
		return struct{}{}, e.Exponentiate(context.Background(), participating, 1)
	})
	require.NoError(t, err)

	ballOf := make(map[int64]map[int64]bool)
	for _, e := range engines {
		for i := 0; i < e.Edges.Len(); i++ {
			eid := e.Edges.EIDs[i]
			set := make(map[int64]bool)
			for _, f := range e.Edges.Ball(i) {
				set[f] = true
			}
			ballOf[eid] = set
		}
	}
	for eid, set := range ballOf {
		for f := range set {
			assert.True(t, ballOf[f][eid], "ball symmetry violated for %d/%d", eid, f)
		}
	}
}

func TestExponentiate_FailsFastOnMemoryCapViolation(t *testing.T) {
	star := [][2]int64{{0, 1}, {0, 2}, {0, 3}, {0, 4}, {0, 5}}
	engines := buildTestEngines(t, 1, 1, 2, 2, star)

	_, err := runConcurrently(engines, func(rank int, e *Engine) (struct{}, error) {
		participating := make([]bool, e.Edges.Len())
		for i := range participating {
			participating[i] = true
		}
		return struct{}{}, e.Exponentiate(context.Background(), participating, 2)
	})
	require.Error(t, err)
	var capErr *MemoryCapError
	assert.ErrorAs(t, err, &capErr)
}
