// Package driver implements the outer phase loop: adaptive sampling
// probability, the MAX_PHASES bound, and the handoff into Finish. Every
// collective it performs goes through the same Transport.Exchange
// contract the phases package uses, so the loop itself never needs to
// know whether it is running over the in-process or gRPC transport.
package driver

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sublinear-mpc/matching/internal/mpc/phases"
	"github.com/sublinear-mpc/matching/pkg/utils"
)

// clock is swappable so phase-timing tests can inject a fake utils.Clock
// instead of depending on wall-clock time.
var clock utils.Clock = utils.NewRealClock()

const (
	// DefaultMaxPhases bounds the outer loop per the algorithm's O(sqrt
	// log Delta) phase count; 30 comfortably covers any Delta a strongly
	// sublinear machine could hold.
	DefaultMaxPhases = 30
	minSampleP       = 1e-4
	maxSampleP       = 0.5
	fullSampleP      = 0.5
)

// Config is the outer-loop configuration a CLI or test harness supplies.
type Config struct {
	MaxPhases    int
	SafetyFactor float64
	FinishFactor float64
}

// PhaseStats is one phase's metrics record, shaped to match the run
// metrics artifact exactly.
type PhaseStats struct {
	PhaseIdx         int
	ActiveEdges      int64
	MatchingSizeNew  int
	P                float64
	Deg              Stats
	StallRate        float64
	Ball             Stats
	MISSelectionRate float64
	MaxCommBytes     int64
	MaxCommItems     int64
	Wall             time.Duration
}

// Result is the driver's complete output. Pairs is populated on rank 0
// only. Every rank records one Phases entry per phase, but the Deg and
// Ball stats in it are computed on rank 0 only (they are zero elsewhere);
// every rank agrees on TotalPhases.
type Result struct {
	Pairs        []phases.MatchedPair
	Phases       []PhaseStats
	TotalPhases  int
	UsedGather   bool
	UsedFallback bool
}

// Run executes the outer phase loop to exhaustion (or MAX_PHASES), then
// invokes Finish and gathers the complete matching to rank 0.
func Run(ctx context.Context, e *phases.Engine, cfg Config) (Result, error) {
	maxPhases := cfg.MaxPhases
	if maxPhases <= 0 {
		maxPhases = DefaultMaxPhases
	}
	safety := cfg.SafetyFactor
	if safety <= 0 {
		safety = 1.0
	}

	var localPairs []phases.MatchedPair
	var phaseStats []PhaseStats
	maxBallSeen := int64(1)
	phaseIdx := 0

	for ; phaseIdx < maxPhases; phaseIdx++ {
		global, err := e.GlobalActiveCount(ctx)
		if err != nil {
			return Result{}, err
		}
		if global == 0 {
			break
		}

		p := adaptiveP(global, maxBallSeen, e.P, e.S, safety)

		stats, pairs, globalMaxBall, err := runPhase(ctx, e, phaseIdx, p)
		if err != nil {
			return Result{}, err
		}
		localPairs = append(localPairs, pairs...)
		phaseStats = append(phaseStats, stats)
		if globalMaxBall > maxBallSeen {
			maxBallSeen = globalMaxBall
		}
	}

	finishFactor := cfg.FinishFactor
	if finishFactor <= 0 {
		finishFactor = phases.DefaultFinishFactor
	}
	finishResult, err := e.Finish(ctx, finishFactor)
	if err != nil {
		return Result{}, err
	}

	allPairs, err := gatherPairsToRoot(ctx, e.Transport, localPairs)
	if err != nil {
		return Result{}, err
	}
	if e.Rank == 0 {
		allPairs = append(allPairs, finishResult.Pairs...)
	}

	return Result{
		Pairs:        allPairs,
		Phases:       phaseStats,
		TotalPhases:  phaseIdx,
		UsedGather:   finishResult.UsedGather,
		UsedFallback: finishResult.UsedFallback,
	}, nil
}

// runPhase executes one full phase (sparsify, stall, exponentiate, local
// MIS, integrate) and its stats collection, wrapped in its own span so a
// trace shows per-phase wall time alongside the exchange spans nested
// inside it.
func runPhase(ctx context.Context, e *phases.Engine, phaseIdx int, p float64) (PhaseStats, []phases.MatchedPair, int64, error) {
	ctx, span := otel.Tracer("mpc-matching").Start(ctx, "phase",
		trace.WithAttributes(attribute.Int("phase", phaseIdx), attribute.Float64("p", p)))
	defer span.End()

	phaseStart := clock.Now()
	e.ResetMetrics()
	e.Edges.ResetStalls()

	sparse, err := e.Sparsify(ctx, phaseIdx, p)
	if err != nil {
		return PhaseStats{}, nil, 0, err
	}

	var degValues []int32
	for i, participating := range sparse.Participating {
		if participating {
			degValues = append(degValues, sparse.DegInSparse[i])
		}
	}
	sampledLocal := int64(len(degValues))

	e.Stall(sparse)

	stalledLocal := int64(0)
	for i := 0; i < e.Edges.Len(); i++ {
		if e.Edges.Stalled(i) {
			stalledLocal++
		}
	}

	if err := e.Exponentiate(ctx, sparse.Participating, e.R); err != nil {
		return PhaseStats{}, nil, 0, err
	}

	var ballSizes []int32
	localMaxBall := int64(0)
	for i, participating := range sparse.Participating {
		if !participating {
			continue
		}
		sz := int32(len(e.Edges.Ball(i)))
		ballSizes = append(ballSizes, sz)
		if int64(sz) > localMaxBall {
			localMaxBall = int64(sz)
		}
	}

	mis := e.LocalMIS(phaseIdx, sparse.Participating)
	chosenLocal := int64(0)
	for i, participating := range sparse.Participating {
		if participating && mis.Chosen[i] {
			chosenLocal++
		}
	}

	pairs, err := e.Integrate(ctx, mis)
	if err != nil {
		return PhaseStats{}, nil, 0, err
	}

	stats, err := collectPhaseStats(ctx, e, phaseIdx, p, phaseStart, sampledLocal, stalledLocal, chosenLocal, degValues, ballSizes, int64(len(pairs)))
	if err != nil {
		return PhaseStats{}, nil, 0, err
	}

	globalMaxBall, err := allReduceMaxInt64(ctx, e.Transport, localMaxBall)
	if err != nil {
		return PhaseStats{}, nil, 0, err
	}

	return stats, pairs, globalMaxBall, nil
}

// adaptiveP implements the peak-hold throttling policy: with estimator
// B = 2*maxBallSeen, desired load G*B must not exceed P*S*safety; if it
// does, p is scaled down proportionally and clamped to [1e-4, 0.5].
func adaptiveP(globalActive, maxBallSeen int64, p, s int, safety float64) float64 {
	b := 2 * maxBallSeen
	desired := float64(globalActive) * float64(b)
	capacity := float64(p) * float64(s) * safety
	if desired <= capacity || desired <= 0 {
		return fullSampleP
	}
	sample := capacity / desired
	if sample < minSampleP {
		sample = minSampleP
	}
	if sample > maxSampleP {
		sample = maxSampleP
	}
	return sample
}

func collectPhaseStats(
	ctx context.Context,
	e *phases.Engine,
	phaseIdx int,
	p float64,
	start time.Time,
	sampledLocal, stalledLocal, chosenLocal int64,
	degValues, ballSizes []int32,
	newMatchesLocal int64,
) (PhaseStats, error) {
	sampled, err := allReduceSumInt64(ctx, e.Transport, sampledLocal)
	if err != nil {
		return PhaseStats{}, err
	}
	stalled, err := allReduceSumInt64(ctx, e.Transport, stalledLocal)
	if err != nil {
		return PhaseStats{}, err
	}
	chosen, err := allReduceSumInt64(ctx, e.Transport, chosenLocal)
	if err != nil {
		return PhaseStats{}, err
	}
	newMatches, err := allReduceSumInt64(ctx, e.Transport, newMatchesLocal)
	if err != nil {
		return PhaseStats{}, err
	}
	global, err := e.GlobalActiveCount(ctx)
	if err != nil {
		return PhaseStats{}, err
	}

	m := e.Metrics()
	maxBytes, err := allReduceMaxInt64(ctx, e.Transport, m.Bytes)
	if err != nil {
		return PhaseStats{}, err
	}
	maxItems, err := allReduceMaxInt64(ctx, e.Transport, m.Items)
	if err != nil {
		return PhaseStats{}, err
	}

	degs, err := gatherInt32ToRoot(ctx, e.Transport, degValues)
	if err != nil {
		return PhaseStats{}, err
	}
	balls, err := gatherInt32ToRoot(ctx, e.Transport, ballSizes)
	if err != nil {
		return PhaseStats{}, err
	}

	var stallRate, misRate float64
	if sampled > 0 {
		stallRate = float64(stalled) / float64(sampled)
		misRate = float64(chosen) / float64(sampled)
	}

	return PhaseStats{
		PhaseIdx:         phaseIdx,
		ActiveEdges:      global,
		MatchingSizeNew:  int(newMatches),
		P:                p,
		Deg:              computeStats(degs),
		StallRate:        stallRate,
		Ball:             computeStats(balls),
		MISSelectionRate: misRate,
		MaxCommBytes:     maxBytes,
		MaxCommItems:     maxItems,
		Wall:             clock.Since(start),
	}, nil
}
