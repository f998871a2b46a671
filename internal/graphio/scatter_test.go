package graphio

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sublinear-mpc/matching/internal/mpc/exchange"
	"github.com/sublinear-mpc/matching/internal/mpc/hashing"
)

func runScatterCluster(t *testing.T, path string, p int) []*Scattered {
	t.Helper()
	hasher := hashing.New(7)
	transports := exchange.NewLocalNetwork(p)

	results := make([]*Scattered, p)
	errs := make([]error, p)
	var wg sync.WaitGroup
	wg.Add(p)
	for r := 0; r < p; r++ {
		go func(r int) {
			defer wg.Done()
			var src EdgeSource
			if r == 0 {
				src = NewFileEdgeSource(path)
			}
			out, err := Scatter(context.Background(), src, hasher, transports[r])
			results[r] = out
			errs[r] = err
		}(r)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	return results
}

func TestScatter_PartitionsEveryEdgeExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edges.txt")
	content := "0 1\n1 2\n2 0\n3 4\n# comment\n\n5 5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	results := runScatterCluster(t, path, 3)

	totalEdges := 0
	seenEIDs := make(map[int64]bool)
	for _, r := range results {
		for i := 0; i < r.Edges.Len(); i++ {
			eid := r.Edges.EIDs[i]
			assert.False(t, seenEIDs[eid], "eid %d owned by more than one rank", eid)
			seenEIDs[eid] = true
			totalEdges++
		}
	}
	// 5 valid lines minus the self-loop (5 5), which is dropped.
	assert.Equal(t, 4, totalEdges)
}

func TestScatter_VertexOwnershipMatchesHasher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edges.txt")
	require.NoError(t, os.WriteFile(path, []byte("0 1\n1 2\n2 3\n"), 0644))

	p := 4
	hasher := hashing.New(7)
	results := runScatterCluster(t, path, p)

	for rank, r := range results {
		for i := 0; i < r.Vertices.Len(); i++ {
			v := r.Vertices.ID(int32(i))
			assert.Equal(t, hasher.OwnerVertex(v, p), rank)
		}
	}
}

func TestScatter_EmptySourceProducesEmptyState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))

	results := runScatterCluster(t, path, 2)
	for _, r := range results {
		assert.Equal(t, 0, r.Edges.Len())
		assert.Equal(t, 0, r.Vertices.Len())
	}
}
