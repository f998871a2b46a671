// Package hashing provides the deterministic, salt-parameterised 64-bit
// hash that the matching engine uses for edge identity, ownership routing,
// and MIS tie-breaking. Every rank must compute identical values for the
// same inputs without coordination, so the hash is a pure function of its
// arguments plus a single process-wide seed.
package hashing

import (
	"crypto/sha1"
	"encoding/binary"
	"math"
)

// MaxI63 is the largest value a non-negative signed 63-bit-range int64 can
// take; Sparsify's sampling threshold is computed against this bound.
const MaxI63 = int64(math.MaxInt64)

// Hasher is the process-wide keyed hash. It is constructed once from the
// run's seed and then shared read-only across every phase and rank
// goroutine: it carries no mutable state.
type Hasher struct {
	seed uint64
}

// New returns a Hasher keyed by seed. A zero seed is valid and simply
// yields the unsalted hash family.
func New(seed int64) *Hasher {
	return &Hasher{seed: uint64(seed)}
}

// Hash64 returns hash(a, b, phase, iter, salt), sorted on (a, b) so that
// Hash64(a, b, ...) == Hash64(b, a, ...) for every phase/iter/salt. This
// symmetry is what lets every rank derive the same eid, owner, and
// priority for an edge regardless of which endpoint it was discovered from.
func (h *Hasher) Hash64(a, b int64, phase, iter int64, salt string) int64 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}

	var buf [40]byte
	binary.BigEndian.PutUint64(buf[0:8], h.seed)
	binary.BigEndian.PutUint64(buf[8:16], uint64(lo))
	binary.BigEndian.PutUint64(buf[16:24], uint64(hi))
	binary.BigEndian.PutUint64(buf[24:32], uint64(phase))
	binary.BigEndian.PutUint64(buf[32:40], uint64(iter))

	sum := sha1.New()
	sum.Write(buf[:])
	if salt != "" {
		sum.Write([]byte(salt))
	}
	digest := sum.Sum(nil)

	return int64(binary.BigEndian.Uint64(digest[:8]))
}

// EID returns the canonical global edge identifier for (u, v). It is
// symmetric: EID(u, v) == EID(v, u).
func (h *Hasher) EID(u, v int64) int64 {
	return h.Hash64(u, v, 0, 0, "eid")
}

// OwnerEdge returns the rank that owns the edge identified by eid, out of
// p ranks. Routing by eid rather than by endpoints means reply paths in
// multi-hop exchanges never need a side-channel routing table.
func (h *Hasher) OwnerEdge(eid int64, p int) int {
	return int(abs64(h.Hash64(eid, 0, 0, 0, "edge_owner")) % int64(p))
}

// OwnerVertex returns the rank that owns vertex v, out of p ranks.
func (h *Hasher) OwnerVertex(v int64, p int) int {
	return int(abs64(h.Hash64(v, 0, 0, 0, "vertex_owner")) % int64(p))
}

// Priority returns the tie-break priority of eid within the given phase.
// Local MIS selects an edge iff its priority strictly exceeds every other
// priority in its ball, with ties broken by larger eid.
func (h *Hasher) Priority(eid int64, phase int) int64 {
	return h.Hash64(eid, 0, int64(phase), 0, "priority")
}

// SampleAccept reports whether an edge with the given eid is selected into
// the current phase's sparse subgraph H_s at participation probability p.
// The decision must be identical on every rank without coordination, so it
// is derived purely from the hash of (eid, phase, iter).
func (h *Hasher) SampleAccept(eid int64, phase, iter int64, p float64) bool {
	if p >= 1.0 {
		return true
	}
	if p <= 0.0 {
		return false
	}
	v := h.Hash64(eid, 0, phase, iter, "sample")
	return abs64(v) <= int64(p*float64(MaxI63))
}

func abs64(v int64) int64 {
	if v < 0 {
		if v == math.MinInt64 {
			return math.MaxInt64
		}
		return -v
	}
	return v
}
