package exchange

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

const (
	kindCounts  uint8 = 0
	kindPayload uint8 = 1
	kindCtrl    uint8 = 2
)

// GRPCTransport is the multi-process Transport implementation: one rank's
// Exchange sends a Transfer RPC to every peer and blocks on its own
// inbox for what peers send back, round by round.
type GRPCTransport struct {
	rank    int
	size    int
	inbox   *rankInbox
	clients []ExchangeClient // clients[i] talks to rank i; clients[rank] is unused
	round   int64
}

// NewGRPCTransport builds a GRPCTransport for this rank, wrapping every
// peer connection except its own in an Exchange client stub. It does not
// dial or wait for the connections itself.
func NewGRPCTransport(rank int, conns []grpc.ClientConnInterface) (*GRPCTransport, error) {
	if rank < 0 || rank >= len(conns) {
		return nil, fmt.Errorf("exchange: rank %d out of range for %d peers", rank, len(conns))
	}
	clients := make([]ExchangeClient, len(conns))
	for i, cc := range conns {
		if i == rank {
			continue
		}
		clients[i] = NewExchangeClient(cc)
	}
	return &GRPCTransport{
		rank:    rank,
		size:    len(conns),
		inbox:   newRankInbox(),
		clients: clients,
	}, nil
}

// Server returns the ExchangeServer this rank must register against its
// own grpc.Server so peers can deliver frames to it.
func (t *GRPCTransport) Server() ExchangeServer {
	return &exchangeServerImpl{inbox: t.inbox}
}

// Rank implements Transport.
func (t *GRPCTransport) Rank() int { return t.rank }

// Size implements Transport.
func (t *GRPCTransport) Size() int { return t.size }

func (t *GRPCTransport) send(ctx context.Context, dst int, kind uint8, payload []byte) error {
	if dst == t.rank {
		t.inbox.deliver(inboxKey(t.round, kind, int32(t.rank)), payload)
		return nil
	}
	env, err := encodeFrame(frame{Src: int32(t.rank), Round: t.round, Kind: kind, Payload: payload})
	if err != nil {
		return err
	}
	_, err = t.clients[dst].Transfer(ctx, env)
	return err
}

func (t *GRPCTransport) recv(ctx context.Context, src int, kind uint8) ([]byte, error) {
	return t.inbox.receive(ctx, inboxKey(t.round, kind, int32(src)))
}

// Exchange implements Transport over a set of peer gRPC connections,
// following the same count-pre-exchange / chunk-loop / control-reduction
// shape as LocalTransport so both transports are interchangeable behind
// the phase components.
func (t *GRPCTransport) Exchange(ctx context.Context, send [][]byte) ([][]byte, RoundMetrics, error) {
	ctx, span := otel.Tracer("mpc-matching").Start(ctx, "exchange.grpc",
		trace.WithAttributes(attribute.Int("rank", t.rank)))
	defer span.End()

	defer func() { t.round++ }()
	start := time.Now()
	p := t.size
	var metrics RoundMetrics

	counts := make([]int64, p)
	for i, buf := range send {
		counts[i] = int64(len(buf))
	}
	if err := t.broadcastCounts(ctx, counts); err != nil {
		return nil, metrics, err
	}
	recvCounts, err := t.gatherCounts(ctx, p)
	if err != nil {
		return nil, metrics, err
	}

	recvBufs := make([][]byte, p)
	for i := range recvBufs {
		recvBufs[i] = make([]byte, 0, recvCounts[i])
	}

	cursor := make([]int64, p)
	for {
		anyRemaining := false
		for dst := 0; dst < p; dst++ {
			lo := cursor[dst]
			hi := lo + DefaultChunkBytes
			if hi > counts[dst] {
				hi = counts[dst]
			}
			chunk := send[dst][lo:hi]
			if err := t.send(ctx, dst, kindPayload, chunk); err != nil {
				return nil, metrics, err
			}
			cursor[dst] = hi
			if cursor[dst] < counts[dst] {
				anyRemaining = true
			}
		}
		for src := 0; src < p; src++ {
			chunk, err := t.recv(ctx, src, kindPayload)
			if err != nil {
				return nil, metrics, err
			}
			recvBufs[src] = append(recvBufs[src], chunk...)
			metrics.Bytes += int64(len(chunk))
			if int64(len(chunk)) > metrics.MaxMessageBytes {
				metrics.MaxMessageBytes = int64(len(chunk))
			}
		}
		metrics.Items++

		globalAny, err := t.reduceAny(ctx, anyRemaining)
		if err != nil {
			return nil, metrics, err
		}
		if !globalAny {
			break
		}
	}

	metrics.Wall = time.Since(start)
	return recvBufs, metrics, nil
}

func (t *GRPCTransport) broadcastCounts(ctx context.Context, counts []int64) error {
	buf := encodeInt64Slice(counts)
	for dst := 0; dst < t.size; dst++ {
		if err := t.send(ctx, dst, kindCounts, buf); err != nil {
			return err
		}
	}
	return nil
}

func (t *GRPCTransport) gatherCounts(ctx context.Context, p int) ([]int64, error) {
	out := make([]int64, p)
	for src := 0; src < p; src++ {
		buf, err := t.recv(ctx, src, kindCounts)
		if err != nil {
			return nil, err
		}
		decoded := decodeInt64Slice(buf)
		if len(decoded) == p {
			out[src] = decoded[t.rank]
		}
	}
	return out, nil
}

func (t *GRPCTransport) reduceAny(ctx context.Context, local bool) (bool, error) {
	var b byte
	if local {
		b = 1
	}
	for dst := 0; dst < t.size; dst++ {
		if err := t.send(ctx, dst, kindCtrl, []byte{b}); err != nil {
			return false, err
		}
	}
	any := false
	for src := 0; src < t.size; src++ {
		buf, err := t.recv(ctx, src, kindCtrl)
		if err != nil {
			return false, err
		}
		if len(buf) == 1 && buf[0] == 1 {
			any = true
		}
	}
	return any, nil
}

func encodeInt64Slice(vals []int64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		u := uint64(v)
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(u >> (8 * b))
		}
	}
	return buf
}

func decodeInt64Slice(buf []byte) []int64 {
	n := len(buf) / 8
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		var u uint64
		for b := 0; b < 8; b++ {
			u |= uint64(buf[i*8+b]) << (8 * b)
		}
		out[i] = int64(u)
	}
	return out
}
