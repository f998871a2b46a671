package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sublinear-mpc/matching/internal/metricsserver"
)

var (
	serveMetricsDir string
	servePort       int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the last run's metrics artifact over HTTP",
	Long: `serve starts a small HTTP server over a directory already populated by
"run --metrics-out", so a completed run's summary and per-phase CSV can be
pulled by a dashboard or curled directly without re-reading the artifact
store by hand.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	binName := BinName()
	serveCmd.Example = `  # Serve the default ./metrics directory on port 8080
  ` + binName + ` serve

  # Serve a specific run's output directory on a custom port
  ` + binName + ` serve -d ./metrics/run-42 -p 9090`

	serveCmd.Flags().StringVarP(&serveMetricsDir, "metrics-dir", "d", "./metrics", "directory containing metrics_run.json/.csv")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "HTTP port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	if _, err := os.Stat(serveMetricsDir); os.IsNotExist(err) {
		return fmt.Errorf("metrics directory not found: %s", serveMetricsDir)
	}

	srv := metricsserver.NewServer(serveMetricsDir, servePort, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down metrics server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Info("metrics server listening at http://localhost:%d (dir=%s)", servePort, serveMetricsDir)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
