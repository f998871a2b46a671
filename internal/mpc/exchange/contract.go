// Package exchange implements the Collective Exchange: the single
// operation every phase component uses to move typed, per-destination
// buffers between ranks. Two concrete transports satisfy the same
// contract — an in-process goroutine/channel transport for single-binary
// runs and tests, and a gRPC transport for a genuine multi-process
// deployment.
package exchange

import (
	"context"
	"time"
)

// DefaultChunkBytes bounds any single in-flight transfer at P*DefaultChunkBytes,
// a 256 MiB chunk size; since payloads here are already serialised to
// bytes, itemsize is folded in and this constant is the chunk size
// directly.
const DefaultChunkBytes = 256 * 1024 * 1024

// RoundMetrics accumulates the instrumentation the metrics artifact
// requires per collective exchange: bytes moved, item count (chunks),
// the largest single message, and wall time spent blocked in the call.
type RoundMetrics struct {
	Bytes           int64
	Items           int64
	MaxMessageBytes int64
	Wall            time.Duration
}

// Add accumulates other into m.
func (m *RoundMetrics) Add(other RoundMetrics) {
	m.Bytes += other.Bytes
	m.Items += other.Items
	if other.MaxMessageBytes > m.MaxMessageBytes {
		m.MaxMessageBytes = other.MaxMessageBytes
	}
	m.Wall += other.Wall
}

// Transport is the Collective Exchange contract: exchange(send[P]) -> recv[P].
// send[r] is this rank's buffer of bytes destined for rank r (already
// serialised by the caller); recv[r] is what the other ranks sent to this
// rank. Ordering is preserved within a source: bytes arrive in the order
// the source appended them, because every implementation transfers each
// (source, destination) pair's bytes as one ordered stream of chunks.
type Transport interface {
	// Rank returns this transport's own rank index in [0, Size()).
	Rank() int
	// Size returns P, the total number of ranks.
	Size() int
	// Exchange performs one full chunked all-to-all: a count pre-exchange,
	// a chunked payload transfer loop, and the global reduction that
	// confirms no sender has remaining data.
	Exchange(ctx context.Context, send [][]byte) (recv [][]byte, metrics RoundMetrics, err error)
}
