package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEdges() *EdgeState {
	u := []int64{1, 2, 5}
	v := []int64{2, 1, 3} // edge 1 deliberately reversed; must canonicalize
	eid := []int64{100, 200, 300}
	return NewEdgeState(u, v, eid)
}

func TestNewEdgeState_Canonicalizes(t *testing.T) {
	es := newTestEdges()
	assert.Equal(t, int64(1), es.U[1])
	assert.Equal(t, int64(2), es.V[1])
}

func TestEdgeState_IndexOf(t *testing.T) {
	es := newTestEdges()

	idx, ok := es.IndexOf(200)
	require.True(t, ok)
	assert.Equal(t, int32(1), idx)

	_, ok = es.IndexOf(999)
	assert.False(t, ok)
}

func TestEdgeState_ActiveMonotone(t *testing.T) {
	es := newTestEdges()
	assert.True(t, es.Active(0))
	es.Deactivate(0)
	assert.False(t, es.Active(0))
	// Deactivating again is a no-op, never a resurrection.
	es.Deactivate(0)
	assert.False(t, es.Active(0))
}

func TestEdgeState_StalledMonotoneWithinPhase(t *testing.T) {
	es := newTestEdges()
	assert.False(t, es.Stalled(2))
	es.Stall(2)
	assert.True(t, es.Stalled(2))

	es.ResetStalls()
	assert.False(t, es.Stalled(2))
}

func TestEdgeState_ActiveCount(t *testing.T) {
	es := newTestEdges()
	assert.Equal(t, 3, es.ActiveCount())
	es.Deactivate(1)
	assert.Equal(t, 2, es.ActiveCount())
}

func TestSetBalls_SortsAndDedups(t *testing.T) {
	es := newTestEdges()
	SetBalls(es, [][]int64{
		{300, 100, 100},
		{200},
		{100, 200, 300},
	})

	assert.Equal(t, []int64{100, 300}, es.Ball(0))
	assert.Equal(t, []int64{200}, es.Ball(1))
	assert.Equal(t, []int64{100, 200, 300}, es.Ball(2))
}

func TestSetBalls_EmptyBall(t *testing.T) {
	es := newTestEdges()
	SetBalls(es, [][]int64{{100}, {}, {300}})
	assert.Equal(t, []int64{100}, es.Ball(0))
	assert.Empty(t, es.Ball(1))
}
