package phases

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sublinear-mpc/matching/internal/mpc/state"
)

func TestLocalMIS_HighestPriorityInBallWins(t *testing.T) {
	engines := buildTestEngines(t, 1, 1, 1000, 3, triangleEdges())
	e := engines[0]

	// Every edge's ball is the full triangle: only the globally highest
	// priority eid may be chosen.
	full := make([]int64, e.Edges.Len())
	copy(full, e.Edges.EIDs)
	balls := make([][]int64, e.Edges.Len())
	for i := range balls {
		balls[i] = append([]int64{}, full...)
	}
	state.SetBalls(e.Edges, balls)

	participating := make([]bool, e.Edges.Len())
	for i := range participating {
		participating[i] = true
	}

	result := e.LocalMIS(0, participating)

	winners := 0
	var best int64 = -1 << 62
	bestIdx := -1
	for i, eid := range e.Edges.EIDs {
		pr := e.Hasher.Priority(eid, 0)
		if pr > best {
			best = pr
			bestIdx = i
		}
	}
	for i, chosen := range result.Chosen {
		if chosen {
			winners++
			assert.Equal(t, bestIdx, i)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestLocalMIS_IsolatedEdgeAlwaysWins(t *testing.T) {
	engines := buildTestEngines(t, 1, 1, 1000, 3, [][2]int64{{10, 20}})
	e := engines[0]

	state.SetBalls(e.Edges, [][]int64{{e.Edges.EIDs[0]}})
	participating := []bool{true}

	result := e.LocalMIS(0, participating)
	assert.True(t, result.Chosen[0])
}

func TestLocalMIS_NonParticipatingNeverChosen(t *testing.T) {
	engines := buildTestEngines(t, 1, 1, 1000, 3, triangleEdges())
	e := engines[0]
	state.SetBalls(e.Edges, make([][]int64, e.Edges.Len()))

	participating := make([]bool, e.Edges.Len())
	result := e.LocalMIS(0, participating)
	for _, chosen := range result.Chosen {
		assert.False(t, chosen)
	}
}
