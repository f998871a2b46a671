package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sublinear-mpc/matching/pkg/utils"
)

var (
	cfgFile string
	verbose bool
	logger  utils.Logger
)

var rootCmd = &cobra.Command{
	Use:   "matchctl",
	Short: "Run and report on MPC maximal-matching computations",
	Long: `matchctl partitions an edge-list graph across a set of strongly
sublinear-memory ranks and computes a maximal matching using the
Massively Parallel Computation phase loop (sparsify, stall, exponentiate,
local MIS, integrate, finish). It writes a JSON/CSV metrics artifact for
every run and can optionally persist run-level history to a database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to a matchctl config file (yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	binName := BinName()
	rootCmd.Example = `  # Run a matching over a local edge list with 8 simulated ranks
  ` + binName + ` run -i graph.edges --ranks 8 --alpha 0.25

  # Run as rank 0 of a distributed cluster
  ` + binName + ` run -i graph.edges --peers 10.0.0.1:7000,10.0.0.2:7000,10.0.0.3:7000

  # Print version information
  ` + binName + ` version`
}

// GetLogger returns the configured root logger.
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}
