// Command matchd runs one non-zero rank of a distributed matching
// cluster: it hosts the Exchange gRPC endpoint for its peers, dials
// every other rank (including matchctl's rank 0), and runs the same
// phase loop rank 0 runs, discarding its own copy of the final matching
// since only rank 0 gathers it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sublinear-mpc/matching/internal/graphio"
	"github.com/sublinear-mpc/matching/internal/mpc/driver"
	"github.com/sublinear-mpc/matching/internal/mpc/exchange"
	"github.com/sublinear-mpc/matching/internal/mpc/hashing"
	"github.com/sublinear-mpc/matching/internal/mpc/phases"
	"github.com/sublinear-mpc/matching/internal/rankserver"
	"github.com/sublinear-mpc/matching/pkg/utils"
)

var (
	rank         = flag.Int("rank", 0, "this process's rank index into --peers (must be > 0; rank 0 is matchctl)")
	peersFlag    = flag.String("peers", "", "comma-separated address list, in rank order, including rank 0")
	seed         = flag.Int64("seed", 1, "hash salt, must match every other rank")
	memCap       = flag.Int("s", 2000, "S, per-rank memory cap, must match every other rank")
	rounds       = flag.Int("rounds", 2, "R, exponentiation rounds per phase, must match every other rank")
	maxPhases    = flag.Int("max-phases", driver.DefaultMaxPhases, "driver termination bound, must match every other rank")
	safetyFactor = flag.Float64("safety-factor", 1.0, "adaptive-p safety factor, must match every other rank")
	verbose      = flag.Bool("v", false, "enable debug logging")
)

func main() {
	flag.Parse()

	logLevel := utils.LevelInfo
	if *verbose {
		logLevel = utils.LevelDebug
	}
	logger := utils.NewDefaultLogger(logLevel, os.Stdout)

	if *rank <= 0 {
		logger.Error("--rank must be greater than 0; rank 0 is always matchctl")
		os.Exit(1)
	}
	peers := strings.Split(*peersFlag, ",")
	if len(peers) < 2 || *rank >= len(peers) {
		logger.Error("--rank %d is out of range for %d peers", *rank, len(peers))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := run(ctx, logger, peers); err != nil {
		logger.Error("rank %d failed: %v", *rank, err)
		os.Exit(1)
	}
	logger.Info("rank %d finished", *rank)
}

func run(ctx context.Context, logger utils.Logger, peers []string) error {
	conns := make([]grpc.ClientConnInterface, len(peers))
	for i, addr := range peers {
		cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("dialing peer %s: %w", addr, err)
		}
		conns[i] = cc
	}

	transport, err := exchange.NewGRPCTransport(*rank, conns)
	if err != nil {
		return err
	}

	srv := rankserver.New(peers[*rank], transport, logger)
	srvErrCh := make(chan error, 1)
	go func() { srvErrCh <- srv.Start() }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	hasher := hashing.New(*seed)
	// Non-zero ranks never read the edge source directly; they receive
	// their partition entirely through the scatter exchange rank 0 drives.
	scattered, err := graphio.Scatter(ctx, nil, hasher, transport)
	if err != nil {
		return fmt.Errorf("scattering graph: %w", err)
	}

	engine := phases.NewEngine(
		phases.Params{S: *memCap, R: *rounds, P: len(peers)},
		transport, hasher, scattered.Edges, scattered.Vertices,
	)

	_, err = driver.Run(ctx, engine, driver.Config{
		MaxPhases:    *maxPhases,
		SafetyFactor: *safetyFactor,
	})
	return err
}
