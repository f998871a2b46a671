package graphio

import (
	"context"
	"encoding/binary"

	"github.com/sublinear-mpc/matching/internal/mpc/exchange"
	"github.com/sublinear-mpc/matching/internal/mpc/hashing"
	"github.com/sublinear-mpc/matching/internal/mpc/state"
	"github.com/sublinear-mpc/matching/pkg/errors"
)

// Scattered is one rank's share of the graph after Scatter: an EdgeState
// holding only the edges this rank owns, and the CSR adjacency of the
// vertices this rank owns, restricted to the edges it also owns (so
// vertex-owned balls and Integrate queries never need a separate
// discovery round).
type Scattered struct {
	Edges    *state.EdgeState
	Vertices *state.VertexState
}

func appendEdge(buf []byte, u, v, eid int64) []byte {
	buf = binary.BigEndian.AppendUint64(buf, uint64(u))
	buf = binary.BigEndian.AppendUint64(buf, uint64(v))
	buf = binary.BigEndian.AppendUint64(buf, uint64(eid))
	return buf
}

func readEdge(buf []byte) (u, v, eid int64, rest []byte) {
	u = int64(binary.BigEndian.Uint64(buf[0:8]))
	v = int64(binary.BigEndian.Uint64(buf[8:16]))
	eid = int64(binary.BigEndian.Uint64(buf[16:24]))
	return u, v, eid, buf[24:]
}

// Scatter computes eid(u,v) and owner_edge(eid, P) for every parsed edge
// and exchanges them so that each rank ends up with exactly the edges it
// owns. Self-loops (u == v) are silently dropped before hashing, matching
// the input format's "self-loops dropped by the owner mapping" rule —
// there is no well-defined line-graph degree for a self-loop, so it never
// reaches eid assignment.
//
// Only rank 0 opens and reads src; every other rank must pass nil. This
// keeps the parse step single-sourced regardless of whether src is
// seekable, at the cost of funnelling the entire input through one rank
// before the first Exchange — acceptable since the input is read exactly
// once per run, not on a hot path. While reading, rank 0 also routes every
// vertex endpoint to whichever rank owns that vertex, so vertex ownership
// is established in the same pass rather than a second full scan.
func Scatter(ctx context.Context, src EdgeSource, hasher *hashing.Hasher, transport exchange.Transport) (*Scattered, error) {
	p := transport.Size()

	edgeSend := make([][]byte, p)
	vertexSend := make([][]byte, p)

	if transport.Rank() == 0 {
		if src == nil {
			return nil, errors.New(errors.CodeConfigError, "rank 0 requires a non-nil edge source")
		}
		edgeCh, err := src.Open(ctx)
		if err != nil {
			return nil, err
		}
		defer src.Close()

		vertexSeen := make([]map[int64]struct{}, p)
		for r := range vertexSeen {
			vertexSeen[r] = make(map[int64]struct{})
		}
		addVertex := func(v int64) {
			owner := hasher.OwnerVertex(v, p)
			if _, ok := vertexSeen[owner][v]; ok {
				return
			}
			vertexSeen[owner][v] = struct{}{}
			vertexSend[owner] = binary.BigEndian.AppendUint64(vertexSend[owner], uint64(v))
		}

		for raw := range edgeCh {
			if raw.U == raw.V {
				continue
			}
			u, v := raw.U, raw.V
			if u > v {
				u, v = v, u
			}
			eid := hasher.EID(u, v)
			owner := hasher.OwnerEdge(eid, p)
			edgeSend[owner] = appendEdge(edgeSend[owner], u, v, eid)
			addVertex(u)
			addVertex(v)
		}
	}

	edgeRecv, _, err := transport.Exchange(ctx, edgeSend)
	if err != nil {
		return nil, err
	}
	vertexRecv, _, err := transport.Exchange(ctx, vertexSend)
	if err != nil {
		return nil, err
	}

	var us, vs, eids []int64
	for _, buf := range edgeRecv {
		for len(buf) > 0 {
			var u, v, eid int64
			u, v, eid, buf = readEdge(buf)
			us = append(us, u)
			vs = append(vs, v)
			eids = append(eids, eid)
		}
	}
	edgeState := state.NewEdgeState(us, vs, eids)

	ownedVertices := make(map[int64]struct{})
	for _, buf := range vertexRecv {
		for len(buf) >= 8 {
			ownedVertices[int64(binary.BigEndian.Uint64(buf[:8]))] = struct{}{}
			buf = buf[8:]
		}
	}
	ownedList := make([]int64, 0, len(ownedVertices))
	for v := range ownedVertices {
		ownedList = append(ownedList, v)
	}

	builder := state.NewVertexAdjacencyBuilder(ownedList)
	for i := 0; i < edgeState.Len(); i++ {
		builder.AddIncidence(edgeState.U[i], int32(i))
		builder.AddIncidence(edgeState.V[i], int32(i))
	}

	return &Scattered{Edges: edgeState, Vertices: builder.Build()}, nil
}
