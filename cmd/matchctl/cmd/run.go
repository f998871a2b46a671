package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sublinear-mpc/matching/internal/graphio"
	"github.com/sublinear-mpc/matching/internal/metrics"
	"github.com/sublinear-mpc/matching/internal/mpc/driver"
	"github.com/sublinear-mpc/matching/internal/mpc/exchange"
	"github.com/sublinear-mpc/matching/internal/mpc/hashing"
	"github.com/sublinear-mpc/matching/internal/mpc/phases"
	"github.com/sublinear-mpc/matching/internal/rankserver"
	"github.com/sublinear-mpc/matching/internal/report"
	"github.com/sublinear-mpc/matching/internal/repository"
	"github.com/sublinear-mpc/matching/internal/storage"
	"github.com/sublinear-mpc/matching/pkg/compression"
	"github.com/sublinear-mpc/matching/pkg/config"
	"github.com/sublinear-mpc/matching/pkg/errors"
	"github.com/sublinear-mpc/matching/pkg/pprof"
	"github.com/sublinear-mpc/matching/pkg/telemetry"
	"github.com/sublinear-mpc/matching/pkg/utils"
)

var (
	runInput      string
	runInputURL   string
	runN          int64
	runAlpha      float64
	runMemGB      float64
	runMemFloor   int
	runSafety     float64
	runSeed       int64
	runMaxPhases  int
	runRounds     int
	runRanks      int
	runPeers      []string
	runMetricsOut string
	runSummary    bool
	runPprofDir   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Partition a graph and compute a maximal matching",
	Long: `run loads an edge list (or a subset of it, for the local rank of a
distributed cluster), partitions it across P ranks by hash, and runs the
phase loop (sparsify/stall/exponentiate/local-MIS/integrate) to a maximal
matching, writing the metrics artifact once the driver and Finish both
complete.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "edge-list file path")
	runCmd.Flags().StringVar(&runInputURL, "input-url", "", "alternative HTTP edge source")
	runCmd.Flags().Int64Var(&runN, "n", 0, "expected vertex count (0 = unknown, falls back to --mem-floor)")
	runCmd.Flags().Float64Var(&runAlpha, "alpha", 0, "memory exponent: S = ceil(n^alpha * 1000)")
	runCmd.Flags().Float64Var(&runMemGB, "mem-gb", 0, "per-rank memory budget in GiB, overrides --alpha/--n sizing")
	runCmd.Flags().IntVar(&runMemFloor, "mem-floor", 0, "minimum S regardless of derivation")
	runCmd.Flags().Float64Var(&runSafety, "safety-factor", 0, "adaptive-p throttle factor for the driver loop; does not affect S")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "hash salt")
	runCmd.Flags().IntVar(&runMaxPhases, "max-phases", 0, "driver termination bound")
	runCmd.Flags().IntVar(&runRounds, "rounds", 0, "R, exponentiation rounds per phase (0 = derive from n)")
	runCmd.Flags().IntVar(&runRanks, "ranks", 0, "P, number of in-process simulated ranks (ignored if --peers is set)")
	runCmd.Flags().StringSliceVar(&runPeers, "peers", nil, "address of every rank (index 0 is this process) for a distributed run")
	runCmd.Flags().StringVar(&runMetricsOut, "metrics-out", "", "directory to write metrics_run.json/.csv to")
	runCmd.Flags().BoolVar(&runSummary, "summary", false, "print a human-readable summary after the run")
	runCmd.Flags().StringVar(&runPprofDir, "pprof-dir", "", "collect CPU/heap/goroutine profiles into this directory while the run executes")
}

func runRun(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx)
		if err != nil {
			log.Warn("telemetry init failed: %v", err)
		} else {
			defer shutdown(ctx)
		}
	}

	if cfg.Run.PprofDir != "" {
		collector, err := startProfiling(cfg.Run.PprofDir)
		if err != nil {
			log.Warn("pprof collection disabled: %v", err)
		} else {
			defer collector.Stop()
		}
	}

	s := deriveS(cfg.Run)
	r := deriveR(cfg.Run)
	log.Info("derived S (per-rank memory cap) = %d, R (exponentiation rounds) = %d", s, r)

	var result driver.Result
	var p int

	if len(cfg.Run.Peers) > 0 {
		p = len(cfg.Run.Peers)
		result, err = runDistributed(ctx, log, cfg, s, r, p)
	} else {
		p = cfg.Run.Ranks
		if p < 1 {
			p = 1
		}
		result, err = runLocal(ctx, cfg, s, r, p)
	}
	if err != nil {
		return err
	}

	log.Info("matching complete: %d pairs across %d phases", len(result.Pairs), result.TotalPhases)

	m := metrics.FromResult(result, s, r, cfg.Run.N, p)

	if err := writeArtifact(ctx, cfg, m); err != nil {
		return err
	}

	if cfg.Database.Enabled {
		if err := saveRunHistory(ctx, cfg, m); err != nil {
			log.Warn("failed to persist run history: %v", err)
		}
	}

	if cfg.Run.Summary {
		report.Print(log, m)
	}

	return nil
}

// applyRunFlags overlays every explicitly-set flag onto cfg.Run, leaving
// file/env-sourced values in place otherwise.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("input") {
		cfg.Run.Input = runInput
	}
	if f.Changed("input-url") {
		cfg.Run.InputURL = runInputURL
	}
	if f.Changed("n") {
		cfg.Run.N = runN
	}
	if f.Changed("alpha") {
		cfg.Run.Alpha = runAlpha
	}
	if f.Changed("mem-gb") {
		cfg.Run.MemGB = runMemGB
	}
	if f.Changed("mem-floor") {
		cfg.Run.MemFloor = runMemFloor
	}
	if f.Changed("safety-factor") {
		cfg.Run.SafetyFactor = runSafety
	}
	if f.Changed("seed") {
		cfg.Run.Seed = runSeed
	}
	if f.Changed("max-phases") {
		cfg.Run.MaxPhases = runMaxPhases
	}
	if f.Changed("rounds") {
		cfg.Run.Rounds = runRounds
	}
	if f.Changed("ranks") {
		cfg.Run.Ranks = runRanks
	}
	if f.Changed("peers") {
		cfg.Run.Peers = runPeers
	}
	if f.Changed("metrics-out") {
		cfg.Run.MetricsOutDir = runMetricsOut
	}
	if f.Changed("summary") {
		cfg.Run.Summary = runSummary
	}
	if f.Changed("pprof-dir") {
		cfg.Run.PprofDir = runPprofDir
	}
}

// memoryConstant is the fixed engineering constant c in S = ceil(n^alpha *
// c), preventing degenerate toy runs from deriving a vanishingly small
// memory cap. It is unrelated to --safety-factor, which only throttles the
// driver's adaptive sampling probability (see driver.Config.SafetyFactor).
const memoryConstant = 1000

// deriveS computes the per-rank memory cap. --mem-gb, when set, takes
// priority over the n^alpha derivation: it is a direct hardware budget
// rather than an asymptotic target, and the two are not meant to be
// combined. mem_floor always applies as a hard lower bound, since a cap
// of a handful of edges makes no algorithmic sense regardless of how it
// was derived.
func deriveS(run config.RunConfig) int {
	var s int
	switch {
	case run.MemGB > 0:
		// ~64 bytes holds one edge's state (u, v, eid, flags, plus a ball
		// slot); this is a rough sizing knob, not a tight accounting.
		const bytesPerEdge = 64
		s = int(run.MemGB * (1 << 30) / bytesPerEdge)
	case run.N > 0:
		raw := math.Pow(float64(run.N), run.Alpha)
		s = int(math.Ceil(raw * memoryConstant))
	default:
		s = run.MemFloor
	}
	if s < run.MemFloor {
		s = run.MemFloor
	}
	return s
}

// deriveR computes the per-phase exponentiation round count: R = max(2,
// floor(sqrt(ln(max(n, 10))))). --rounds, when explicitly set, overrides
// this outright, the same way --mem-gb overrides the n^alpha derivation
// in deriveS.
func deriveR(run config.RunConfig) int {
	if run.Rounds > 0 {
		return run.Rounds
	}
	r := int(math.Floor(math.Sqrt(math.Log(math.Max(float64(run.N), 10)))))
	if r < 2 {
		r = 2
	}
	return r
}

// startProfiling collects CPU, heap, and goroutine profiles into dir for
// the lifetime of the run, snapshotting periodically; useful for sizing
// the per-rank memory cap on a graph that turns out larger than expected.
func startProfiling(dir string) (*pprof.Collector, error) {
	cfg := pprof.DefaultConfig()
	cfg.Enabled = true
	cfg.OutputDir = dir

	collector, err := pprof.NewCollector(cfg)
	if err != nil {
		return nil, err
	}
	if err := collector.Start(); err != nil {
		return nil, err
	}
	return collector, nil
}

func buildEdgeSource(cfg *config.Config) (graphio.EdgeSource, error) {
	if cfg.Run.InputURL != "" {
		return graphio.NewHTTPEdgeSource(cfg.Run.InputURL), nil
	}
	if cfg.Run.Input != "" {
		return graphio.NewFileEdgeSource(cfg.Run.Input), nil
	}
	return nil, errors.New(errors.CodeConfigError, "one of input or input_url is required")
}

// runLocal simulates P ranks in-process over LocalTransport, one goroutine
// per rank, and returns rank 0's Result.
func runLocal(ctx context.Context, cfg *config.Config, s, r, p int) (driver.Result, error) {
	hasher := hashing.New(cfg.Run.Seed)
	transports := exchange.NewLocalNetwork(p)

	src, err := buildEdgeSource(cfg)
	if err != nil {
		return driver.Result{}, err
	}

	results := make([]driver.Result, p)
	errs := make([]error, p)
	var wg sync.WaitGroup
	wg.Add(p)
	for rank := 0; rank < p; rank++ {
		go func(rank int) {
			defer wg.Done()
			var rankSrc graphio.EdgeSource
			if rank == 0 {
				rankSrc = src
			}
			scattered, err := graphio.Scatter(ctx, rankSrc, hasher, transports[rank])
			if err != nil {
				errs[rank] = err
				return
			}
			engine := phases.NewEngine(phases.Params{S: s, R: r, P: p}, transports[rank], hasher, scattered.Edges, scattered.Vertices)
			res, err := driver.Run(ctx, engine, driver.Config{
				MaxPhases:    cfg.Run.MaxPhases,
				SafetyFactor: cfg.Run.SafetyFactor,
			})
			results[rank] = res
			errs[rank] = err
		}(rank)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return driver.Result{}, err
		}
	}
	return results[0], nil
}

// runDistributed plays rank 0 of a real multi-process cluster: it dials
// every peer, hosts its own Exchange endpoint for peers to call back
// into, and runs the driver loop the same way runLocal does for rank 0.
// Every other rank must be a matchd process configured with the same
// --peers list and its own --rank index.
func runDistributed(ctx context.Context, log utils.Logger, cfg *config.Config, s, r, p int) (driver.Result, error) {
	hasher := hashing.New(cfg.Run.Seed)

	conns := make([]grpc.ClientConnInterface, p)
	for i, addr := range cfg.Run.Peers {
		cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return driver.Result{}, errors.Wrap(errors.CodeIOError, fmt.Sprintf("dialing peer %s", addr), err)
		}
		conns[i] = cc
	}

	transport, err := exchange.NewGRPCTransport(0, conns)
	if err != nil {
		return driver.Result{}, err
	}

	srv := rankserver.New(cfg.Run.Peers[0], transport, log)
	srvErrCh := make(chan error, 1)
	go func() { srvErrCh <- srv.Start() }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("rank server shutdown: %v", err)
		}
	}()

	src, err := buildEdgeSource(cfg)
	if err != nil {
		return driver.Result{}, err
	}
	scattered, err := graphio.Scatter(ctx, src, hasher, transport)
	if err != nil {
		return driver.Result{}, err
	}

	engine := phases.NewEngine(phases.Params{S: s, R: r, P: p}, transport, hasher, scattered.Edges, scattered.Vertices)
	return driver.Run(ctx, engine, driver.Config{
		MaxPhases:    cfg.Run.MaxPhases,
		SafetyFactor: cfg.Run.SafetyFactor,
	})
}

func writeArtifact(ctx context.Context, cfg *config.Config, m metrics.RunMetrics) error {
	if err := cfg.EnsureMetricsDir(); err != nil {
		return err
	}

	store, err := storage.NewArtifactStore(&cfg.Storage)
	if err != nil {
		return err
	}

	var jsonBuf, csvBuf bytes.Buffer
	if err := metrics.WriteJSON(m, &jsonBuf); err != nil {
		return err
	}
	if err := metrics.WriteCSV(m, &csvBuf); err != nil {
		return err
	}

	jsonKey := filepath.Join(cfg.Run.MetricsOutDir, "metrics_run.json")
	csvKey := filepath.Join(cfg.Run.MetricsOutDir, "metrics_run.csv")

	jsonReader, csvReader := io.Reader(&jsonBuf), io.Reader(&csvBuf)
	if cfg.Storage.Compress {
		zstd, err := compression.NewZstdCompressor(compression.LevelDefault)
		if err != nil {
			return errors.Wrap(errors.CodeIOError, "building zstd compressor", err)
		}
		defer zstd.Close()

		jsonZ, err := zstd.Compress(jsonBuf.Bytes())
		if err != nil {
			return errors.Wrap(errors.CodeIOError, "compressing metrics json", err)
		}
		csvZ, err := zstd.Compress(csvBuf.Bytes())
		if err != nil {
			return errors.Wrap(errors.CodeIOError, "compressing metrics csv", err)
		}
		jsonKey += ".zst"
		csvKey += ".zst"
		jsonReader, csvReader = bytes.NewReader(jsonZ), bytes.NewReader(csvZ)
	}

	if err := store.Upload(ctx, jsonKey, jsonReader); err != nil {
		return err
	}
	if err := store.Upload(ctx, csvKey, csvReader); err != nil {
		return err
	}
	return nil
}

func saveRunHistory(ctx context.Context, cfg *config.Config, m metrics.RunMetrics) error {
	db, err := repository.NewGormDB(&cfg.Database)
	if err != nil {
		return err
	}
	defer repository.Close(db)

	repo := repository.NewGormRunRepository(db)
	_, err = repo.SaveRun(ctx, m)
	return err
}
