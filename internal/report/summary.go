// Package report renders a completed run's metrics as a short
// human-readable summary, the counterpart to the mandatory JSON/CSV
// artifact written by the metrics package.
package report

import (
	"fmt"

	"github.com/sublinear-mpc/matching/internal/metrics"
	"github.com/sublinear-mpc/matching/pkg/utils"
)

// Print writes a one-screen summary of m to logger: final matching size,
// phase count, total wall time, and peak ball size across all phases.
func Print(logger utils.Logger, m metrics.RunMetrics) {
	logger.Info("=== Matching Run Summary ===")
	logger.Info("n = %d, P = %d, S (memory cap) = %d, R (exponentiation rounds) = %d", m.Run.N, m.Run.P, m.Run.S, m.Run.R)
	logger.Info("Matching size: %d", m.Run.TotalMatchingSize)
	logger.Info("Phases run:    %d", m.Run.TotalPhases)

	var wall, peakBall int64
	var peakActive int64
	for _, ph := range m.Phases {
		wall += ph.WallMicros
		if int64(ph.Ball.Max) > peakBall {
			peakBall = int64(ph.Ball.Max)
		}
		if ph.ActiveEdges > peakActive {
			peakActive = ph.ActiveEdges
		}
	}
	logger.Info("Wall time:     %s", formatMicros(wall))
	logger.Info("Peak ball size: %d", peakBall)
	logger.Info("Peak active edges: %d", peakActive)

	if len(m.Phases) == 0 {
		return
	}
	logger.Info("")
	logger.Info("=== Per-Phase ===")
	for _, ph := range m.Phases {
		logger.Info("  phase %2d: active=%-8d new_matched=%-6d p=%.4f stall=%.3f ball_max=%-4d wall=%s",
			ph.PhaseIdx, ph.ActiveEdges, ph.MatchingSizeNew, ph.P, ph.StallRate, ph.Ball.Max, formatMicros(ph.WallMicros))
	}
}

func formatMicros(us int64) string {
	if us < 1000 {
		return fmt.Sprintf("%dus", us)
	}
	ms := float64(us) / 1000.0
	if ms < 1000 {
		return fmt.Sprintf("%.2fms", ms)
	}
	return fmt.Sprintf("%.2fs", ms/1000.0)
}
