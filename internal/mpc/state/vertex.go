package state

// VertexState is the CSR adjacency of every vertex owned by this rank,
// restricted to edges that are co-resident (i.e. the rank both owns the
// vertex and holds a local index for the edge because it owns the edge
// too). It is built once after Graph IO and never mutates afterwards.
type VertexState struct {
	ids       []int64 // global vertex ID per local row
	idToIndex map[int64]int32

	offsets []int32 // CSR offsets, length len(ids)+1
	storage []int32 // local edge indices, length offsets[len(ids)]
}

// VertexAdjacencyBuilder accumulates (vertex, localEdgeIndex) pairs before
// a single CSR build pass; Build keeps each vertex's incidences in the
// order they were added and does not sort them.
type VertexAdjacencyBuilder struct {
	ids       []int64
	idToIndex map[int64]int32
	adjacency [][]int32
}

// NewVertexAdjacencyBuilder creates a builder pre-sized for the given
// distinct vertex IDs owned by this rank.
func NewVertexAdjacencyBuilder(ownedVertexIDs []int64) *VertexAdjacencyBuilder {
	b := &VertexAdjacencyBuilder{
		ids:       make([]int64, len(ownedVertexIDs)),
		idToIndex: make(map[int64]int32, len(ownedVertexIDs)),
		adjacency: make([][]int32, len(ownedVertexIDs)),
	}
	copy(b.ids, ownedVertexIDs)
	for i, id := range b.ids {
		b.idToIndex[id] = int32(i)
	}
	return b
}

// AddIncidence records that localEdgeIndex is incident to vertexID. It is
// a no-op if vertexID is not one of this rank's owned vertices.
func (b *VertexAdjacencyBuilder) AddIncidence(vertexID int64, localEdgeIndex int32) {
	idx, ok := b.idToIndex[vertexID]
	if !ok {
		return
	}
	b.adjacency[idx] = append(b.adjacency[idx], localEdgeIndex)
}

// Build flattens the accumulated adjacency lists into a CSR VertexState.
func (b *VertexAdjacencyBuilder) Build() *VertexState {
	n := len(b.ids)
	offsets := make([]int32, n+1)
	for i, adj := range b.adjacency {
		offsets[i+1] = offsets[i] + int32(len(adj))
	}
	storage := make([]int32, offsets[n])
	for i, adj := range b.adjacency {
		copy(storage[offsets[i]:offsets[i+1]], adj)
	}
	return &VertexState{
		ids:       b.ids,
		idToIndex: b.idToIndex,
		offsets:   offsets,
		storage:   storage,
	}
}

// Len returns the number of vertices owned by this rank.
func (vs *VertexState) Len() int { return len(vs.ids) }

// IndexOf resolves a global vertex ID to its local row, reporting false
// if this rank does not own that vertex.
func (vs *VertexState) IndexOf(vertexID int64) (int32, bool) {
	idx, ok := vs.idToIndex[vertexID]
	return idx, ok
}

// ID returns the global vertex ID at local row idx.
func (vs *VertexState) ID(idx int32) int64 { return vs.ids[idx] }

// IncidentEdges returns the local edge indices incident to the vertex at
// local row idx.
func (vs *VertexState) IncidentEdges(idx int32) []int32 {
	return vs.storage[vs.offsets[idx]:vs.offsets[idx+1]]
}
