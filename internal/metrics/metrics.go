// Package metrics assembles and serialises the run's metrics artifact:
// one record per phase plus a run-level summary, written as JSON and as a
// companion CSV of the per-phase scalar columns.
package metrics

import (
	"time"

	"github.com/sublinear-mpc/matching/internal/mpc/driver"
)

// DegStats mirrors the artifact's deg stats {min,max,mean,p95}.
type DegStats struct {
	Min  int32   `json:"min"`
	Max  int32   `json:"max"`
	Mean float64 `json:"mean"`
	P95  float64 `json:"p95"`
}

// BallStats mirrors the artifact's ball stats {max,mean,p95} — no min, per
// the schema (a ball always contains at least its own edge, so the floor
// is uninteresting).
type BallStats struct {
	Max  int32   `json:"max"`
	Mean float64 `json:"mean"`
	P95  float64 `json:"p95"`
}

// PhaseRecord is one phase's artifact entry.
type PhaseRecord struct {
	PhaseIdx         int       `json:"phase_idx"`
	ActiveEdges      int64     `json:"active_edges"`
	MatchingSizeNew  int       `json:"matching_size_new"`
	P                float64   `json:"p"`
	Deg              DegStats  `json:"deg"`
	StallRate        float64   `json:"stall_rate"`
	Ball             BallStats `json:"ball"`
	MISSelectionRate float64   `json:"mis_selection_rate"`
	MaxCommBytes     int64     `json:"max_comm_bytes"`
	MaxCommItems     int64     `json:"max_comm_items"`
	WallMicros       int64     `json:"wall_micros"`
}

// RunRecord is the run-level summary, populated once the driver's loop
// and Finish have both returned.
type RunRecord struct {
	S                 int   `json:"s"`
	R                 int   `json:"r"`
	N                 int64 `json:"n"`
	P                 int   `json:"p"`
	TotalMatchingSize int   `json:"total_matching_size"`
	TotalPhases       int   `json:"total_phases"`
}

// RunMetrics is the complete artifact: the run-level summary plus every
// phase's record, in phase order.
type RunMetrics struct {
	Run    RunRecord     `json:"run"`
	Phases []PhaseRecord `json:"phases"`
}

// FromResult builds a RunMetrics from a completed driver.Result plus the
// run's static parameters (S, R, n, P), converting driver.PhaseStats and
// driver.Stats into the artifact's wire shape.
func FromResult(result driver.Result, s, r int, n int64, p int) RunMetrics {
	phases := make([]PhaseRecord, len(result.Phases))
	for i, ps := range result.Phases {
		phases[i] = PhaseRecord{
			PhaseIdx:        ps.PhaseIdx,
			ActiveEdges:     ps.ActiveEdges,
			MatchingSizeNew: ps.MatchingSizeNew,
			P:               ps.P,
			Deg: DegStats{
				Min:  ps.Deg.Min,
				Max:  ps.Deg.Max,
				Mean: ps.Deg.Mean,
				P95:  ps.Deg.P95,
			},
			StallRate: ps.StallRate,
			Ball: BallStats{
				Max:  ps.Ball.Max,
				Mean: ps.Ball.Mean,
				P95:  ps.Ball.P95,
			},
			MISSelectionRate: ps.MISSelectionRate,
			MaxCommBytes:     ps.MaxCommBytes,
			MaxCommItems:     ps.MaxCommItems,
			WallMicros:       ps.Wall.Microseconds(),
		}
	}

	return RunMetrics{
		Run: RunRecord{
			S:                 s,
			R:                 r,
			N:                 n,
			P:                 p,
			TotalMatchingSize: len(result.Pairs),
			TotalPhases:       result.TotalPhases,
		},
		Phases: phases,
	}
}

// Wall reconstructs the phase's wall-clock duration from the stored
// microsecond count, for callers (e.g. the report formatter) that want a
// time.Duration rather than the wire int64.
func (p PhaseRecord) Wall() time.Duration {
	return time.Duration(p.WallMicros) * time.Microsecond
}
