package exchange

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAll(t *testing.T, transports []*LocalTransport, send func(rank int) [][]byte) [][][]byte {
	t.Helper()
	p := len(transports)
	results := make([][][]byte, p)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	wg.Add(p)
	for r := 0; r < p; r++ {
		go func(r int) {
			defer wg.Done()
			recv, _, err := transports[r].Exchange(context.Background(), send(r))
			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			results[r] = recv
		}(r)
	}
	wg.Wait()
	require.NoError(t, firstErr)
	return results
}

func TestLocalTransport_RankAndSize(t *testing.T) {
	ts := NewLocalNetwork(3)
	for r, tr := range ts {
		assert.Equal(t, r, tr.Rank())
		assert.Equal(t, 3, tr.Size())
	}
}

func TestLocalTransport_SmallAllToAll(t *testing.T) {
	ts := NewLocalNetwork(3)
	payloads := map[int]map[int][]byte{
		0: {0: []byte("a0"), 1: []byte("a1"), 2: []byte("a2")},
		1: {0: []byte("b0"), 1: []byte("b1"), 2: []byte("b2")},
		2: {0: []byte("c0"), 1: []byte("c1"), 2: []byte("c2")},
	}

	results := runAll(t, ts, func(rank int) [][]byte {
		send := make([][]byte, 3)
		for dst := 0; dst < 3; dst++ {
			send[dst] = payloads[rank][dst]
		}
		return send
	})

	for dst := 0; dst < 3; dst++ {
		for src := 0; src < 3; src++ {
			assert.Equal(t, payloads[src][dst], results[dst][src])
		}
	}
}

func TestLocalTransport_MultiChunkTransfer(t *testing.T) {
	ts := NewLocalNetwork(2)
	big := make([]byte, DefaultChunkBytes*2+17)
	for i := range big {
		big[i] = byte(i % 251)
	}

	results := runAll(t, ts, func(rank int) [][]byte {
		send := make([][]byte, 2)
		if rank == 0 {
			send[1] = big
		}
		send[rank] = nil
		return send
	})

	assert.Equal(t, big, results[1][0])
}

func TestLocalTransport_OrderingWithinSource(t *testing.T) {
	ts := NewLocalNetwork(2)
	payload := []byte{}
	for i := 0; i < 10_000; i++ {
		payload = append(payload, byte(i))
	}

	results := runAll(t, ts, func(rank int) [][]byte {
		send := make([][]byte, 2)
		if rank == 0 {
			send[1] = payload
		}
		return send
	})

	assert.Equal(t, payload, results[1][0])
}

func TestLocalTransport_EmptyExchangeTerminates(t *testing.T) {
	ts := NewLocalNetwork(4)
	results := runAll(t, ts, func(rank int) [][]byte {
		return make([][]byte, 4)
	})
	for _, r := range results {
		for _, buf := range r {
			assert.Empty(t, buf)
		}
	}
}

func TestLocalTransport_ContextCancellation(t *testing.T) {
	ts := NewLocalNetwork(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := ts[0].Exchange(ctx, make([][]byte, 2))
	assert.Error(t, err)
}
