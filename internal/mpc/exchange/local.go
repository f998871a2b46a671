package exchange

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LocalNetwork is the shared channel fabric backing every rank's
// LocalTransport. Each ordered (source, destination) pair gets its own
// unbuffered channel per message class (counts, payload chunk, control
// reduction), so a source's messages to one destination are naturally
// delivered in send order without any extra bookkeeping.
type LocalNetwork struct {
	p       int
	counts  [][]chan int32
	payload [][]chan []byte
	ctrl    [][]chan bool
}

// NewLocalNetwork builds a fully connected channel fabric for p ranks and
// returns one LocalTransport per rank, sharing that fabric. The returned
// transports are meant to be handed one each to p goroutines that run a
// rank's phase loop; Exchange calls block until every rank reaches the
// matching call, exactly as the bulk-synchronous model requires.
func NewLocalNetwork(p int) []*LocalTransport {
	net := &LocalNetwork{
		p:       p,
		counts:  make([][]chan int32, p),
		payload: make([][]chan []byte, p),
		ctrl:    make([][]chan bool, p),
	}
	for i := 0; i < p; i++ {
		net.counts[i] = make([]chan int32, p)
		net.payload[i] = make([]chan []byte, p)
		net.ctrl[i] = make([]chan bool, p)
		for j := 0; j < p; j++ {
			net.counts[i][j] = make(chan int32)
			net.payload[i][j] = make(chan []byte)
			net.ctrl[i][j] = make(chan bool)
		}
	}

	transports := make([]*LocalTransport, p)
	for r := 0; r < p; r++ {
		transports[r] = &LocalTransport{net: net, rank: r}
	}
	return transports
}

// LocalTransport is the in-process, goroutine/channel Transport
// implementation for one rank.
type LocalTransport struct {
	net  *LocalNetwork
	rank int
}

// Rank implements Transport.
func (t *LocalTransport) Rank() int { return t.rank }

// Size implements Transport.
func (t *LocalTransport) Size() int { return t.net.p }

// Exchange implements Transport.
func (t *LocalTransport) Exchange(ctx context.Context, send [][]byte) ([][]byte, RoundMetrics, error) {
	ctx, span := otel.Tracer("mpc-matching").Start(ctx, "exchange.local",
		trace.WithAttributes(attribute.Int("rank", t.rank)))
	defer span.End()

	start := time.Now()
	p := t.net.p
	var metrics RoundMetrics

	counts := make([]int32, p)
	for i, buf := range send {
		counts[i] = int32(len(buf))
	}
	recvCounts, err := allToAll(ctx, t.rank, p, t.net.counts, counts)
	if err != nil {
		return nil, metrics, err
	}

	recvBufs := make([][]byte, p)
	for i := range recvBufs {
		recvBufs[i] = make([]byte, 0, recvCounts[i])
	}

	cursor := make([]int32, p)
	for {
		chunkSend := make([][]byte, p)
		anyRemaining := false
		for dst := 0; dst < p; dst++ {
			start := cursor[dst]
			end := start + DefaultChunkBytes
			if end > counts[dst] {
				end = counts[dst]
			}
			chunkSend[dst] = send[dst][start:end]
			cursor[dst] = end
			if cursor[dst] < counts[dst] {
				anyRemaining = true
			}
		}

		chunkRecv, err := allToAll(ctx, t.rank, p, t.net.payload, chunkSend)
		if err != nil {
			return nil, metrics, err
		}
		for src, chunk := range chunkRecv {
			recvBufs[src] = append(recvBufs[src], chunk...)
			metrics.Bytes += int64(len(chunk))
			if int64(len(chunk)) > metrics.MaxMessageBytes {
				metrics.MaxMessageBytes = int64(len(chunk))
			}
		}
		metrics.Items++

		ctrlSend := make([]bool, p)
		for i := range ctrlSend {
			ctrlSend[i] = anyRemaining
		}
		ctrlRecv, err := allToAll(ctx, t.rank, p, t.net.ctrl, ctrlSend)
		if err != nil {
			return nil, metrics, err
		}
		globalAny := false
		for _, v := range ctrlRecv {
			if v {
				globalAny = true
				break
			}
		}
		if !globalAny {
			break
		}
	}

	metrics.Wall = time.Since(start)
	return recvBufs, metrics, nil
}

// allToAll performs one all-to-all of per-destination values over a shared
// [p][p]chan T fabric: rank r sends send[dst] on chans[r][dst] for every
// dst, and receives chans[src][r] for every src. Sends run in a background
// goroutine so self-exchange (r sending to r) never deadlocks against the
// receive loop below.
func allToAll[T any](ctx context.Context, rank, p int, chans [][]chan T, send []T) ([]T, error) {
	errCh := make(chan error, 1)
	go func() {
		for dst := 0; dst < p; dst++ {
			select {
			case chans[rank][dst] <- send[dst]:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		errCh <- nil
	}()

	recv := make([]T, p)
	for src := 0; src < p; src++ {
		select {
		case recv[src] = <-chans[src][rank]:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return recv, nil
}
