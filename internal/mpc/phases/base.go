package phases

import (
	"github.com/sublinear-mpc/matching/internal/mpc/exchange"
	"github.com/sublinear-mpc/matching/internal/mpc/hashing"
	"github.com/sublinear-mpc/matching/internal/mpc/state"
)

// Params is the run-wide configuration every phase component reads; it is
// set once at startup and never mutated.
type Params struct {
	S int // strongly sublinear per-rank memory cap, in ball elements
	R int // exponentiation rounds per phase
	P int // number of ranks
}

// Engine is the shared context one rank's phase components operate
// against: its transport, hasher, and the edge/vertex state that Sparsify,
// Stall, Exponentiate, Local MIS and Integrate all mutate in sequence
// across a phase.
type Engine struct {
	Params

	Transport exchange.Transport
	Hasher    *hashing.Hasher
	Edges     *state.EdgeState
	Vertices  *state.VertexState

	Rank int

	roundMetrics exchange.RoundMetrics
}

// Metrics returns the communication metrics accumulated across every
// Exchange call since the last ResetMetrics, for the driver to fold into
// its per-phase record.
func (e *Engine) Metrics() exchange.RoundMetrics {
	return e.roundMetrics
}

// ResetMetrics zeroes the accumulated communication metrics; the driver
// calls this once per phase before running its components.
func (e *Engine) ResetMetrics() {
	e.roundMetrics = exchange.RoundMetrics{}
}

// NewEngine builds an Engine bound to one rank's transport and state.
func NewEngine(p Params, transport exchange.Transport, hasher *hashing.Hasher, edges *state.EdgeState, vertices *state.VertexState) *Engine {
	return &Engine{
		Params:    p,
		Transport: transport,
		Hasher:    hasher,
		Edges:     edges,
		Vertices:  vertices,
		Rank:      transport.Rank(),
	}
}

// MemoryCapError reports a hard violation of the per-edge ball size
// invariant: the only fatal runtime error class in steady state.
type MemoryCapError struct {
	EID   int64
	Size  int
	Cap   int
	Where string
}

func (e *MemoryCapError) Error() string {
	return "mpc: memory cap violation in " + e.Where + ": ball size exceeds cap"
}
