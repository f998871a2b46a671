package driver

import (
	"context"
	"encoding/binary"

	"github.com/sublinear-mpc/matching/internal/mpc/exchange"
	"github.com/sublinear-mpc/matching/internal/mpc/phases"
)

func appendI64(buf []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(v))
}

func readI64(buf []byte) (int64, []byte) {
	return int64(binary.BigEndian.Uint64(buf)), buf[8:]
}

func appendI32Slice(buf []byte, vals []int32) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(vals)))
	for _, v := range vals {
		buf = binary.BigEndian.AppendUint32(buf, uint32(v))
	}
	return buf
}

func readI32Slice(buf []byte) ([]int32, []byte) {
	n := binary.BigEndian.Uint32(buf)
	buf = buf[4:]
	vals := make([]int32, n)
	for i := range vals {
		vals[i] = int32(binary.BigEndian.Uint32(buf))
		buf = buf[4:]
	}
	return vals, buf
}

// allReduceMaxInt64 computes the maximum of local across every rank,
// available to every rank afterwards, reusing the same broadcast-then-
// locally-reduce shape as phases.Engine.GlobalActiveCount.
func allReduceMaxInt64(ctx context.Context, t exchange.Transport, local int64) (int64, error) {
	send := make([][]byte, t.Size())
	for dst := range send {
		send[dst] = appendI64(nil, local)
	}
	recv, _, err := t.Exchange(ctx, send)
	if err != nil {
		return 0, err
	}
	max := local
	for _, buf := range recv {
		v, _ := readI64(buf)
		if v > max {
			max = v
		}
	}
	return max, nil
}

// allReduceSumInt64 sums local across every rank, available to every rank
// afterwards.
func allReduceSumInt64(ctx context.Context, t exchange.Transport, local int64) (int64, error) {
	send := make([][]byte, t.Size())
	for dst := range send {
		send[dst] = appendI64(nil, local)
	}
	recv, _, err := t.Exchange(ctx, send)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, buf := range recv {
		v, _ := readI64(buf)
		sum += v
	}
	return sum, nil
}

// gatherInt32ToRoot concatenates local (in rank order) onto rank 0; every
// other rank gets nil back.
func gatherInt32ToRoot(ctx context.Context, t exchange.Transport, local []int32) ([]int32, error) {
	send := make([][]byte, t.Size())
	send[0] = appendI32Slice(nil, local)
	recv, _, err := t.Exchange(ctx, send)
	if err != nil {
		return nil, err
	}
	if t.Rank() != 0 {
		return nil, nil
	}
	var all []int32
	for _, buf := range recv {
		vals, _ := readI32Slice(buf)
		all = append(all, vals...)
	}
	return all, nil
}

// gatherPairsToRoot concatenates local matched pairs onto rank 0.
func gatherPairsToRoot(ctx context.Context, t exchange.Transport, local []phases.MatchedPair) ([]phases.MatchedPair, error) {
	send := make([][]byte, t.Size())
	var buf []byte
	for _, pr := range local {
		buf = appendI64(buf, pr.U)
		buf = appendI64(buf, pr.V)
	}
	send[0] = buf
	recv, _, err := t.Exchange(ctx, send)
	if err != nil {
		return nil, err
	}
	if t.Rank() != 0 {
		return nil, nil
	}
	var all []phases.MatchedPair
	for _, b := range recv {
		for len(b) > 0 {
			var u, v int64
			u, b = readI64(b)
			v, b = readI64(b)
			all = append(all, phases.MatchedPair{U: u, V: v})
		}
	}
	return all, nil
}
