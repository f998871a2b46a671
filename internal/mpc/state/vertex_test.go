package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexAdjacencyBuilder_Build(t *testing.T) {
	b := NewVertexAdjacencyBuilder([]int64{1, 2, 3})
	b.AddIncidence(1, 0)
	b.AddIncidence(2, 0)
	b.AddIncidence(2, 1)
	b.AddIncidence(3, 2)
	// Not owned; must be silently ignored.
	b.AddIncidence(99, 5)

	vs := b.Build()

	assert.Equal(t, 3, vs.Len())

	idx1, ok := vs.IndexOf(1)
	require.True(t, ok)
	assert.Equal(t, []int32{0}, vs.IncidentEdges(idx1))

	idx2, ok := vs.IndexOf(2)
	require.True(t, ok)
	assert.Equal(t, []int32{0, 1}, vs.IncidentEdges(idx2))

	idx3, ok := vs.IndexOf(3)
	require.True(t, ok)
	assert.Equal(t, []int32{2}, vs.IncidentEdges(idx3))

	_, ok = vs.IndexOf(99)
	assert.False(t, ok)
}

func TestVertexAdjacencyBuilder_EmptyVertexHasNoEdges(t *testing.T) {
	b := NewVertexAdjacencyBuilder([]int64{1, 2})
	b.AddIncidence(1, 0)
	vs := b.Build()

	idx2, ok := vs.IndexOf(2)
	require.True(t, ok)
	assert.Empty(t, vs.IncidentEdges(idx2))
}

func TestVertexState_IDRoundTrip(t *testing.T) {
	b := NewVertexAdjacencyBuilder([]int64{10, 20, 30})
	vs := b.Build()

	idx, ok := vs.IndexOf(20)
	require.True(t, ok)
	assert.Equal(t, int64(20), vs.ID(idx))
}

func TestVertexAdjacencyBuilder_BuiltTwiceIsDeterministic(t *testing.T) {
	ids := []int64{1, 2, 3}
	build := func() *VertexState {
		b := NewVertexAdjacencyBuilder(ids)
		b.AddIncidence(1, 0)
		b.AddIncidence(2, 0)
		b.AddIncidence(2, 1)
		return b.Build()
	}

	a := build()
	c := build()

	assert.Equal(t, a.offsets, c.offsets)
	assert.Equal(t, a.storage, c.storage)
}
