package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cosim-dev/cosim/sim/trace"
)

var (
	// CLI flags for a run
	systemPath string // Path to the YAML system description
	method     string // Scheduling method, overrides executor.method
	workers    int    // Worker count, overrides executor.workers
	seed       int64  // Seed for stochastic components, overrides simulation.seed
	logLevel   string // Log verbosity level
	outputPath string // CSV result file; empty disables recording
	traceLevel string // Trace verbosity (none, waves, invocations)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "cosim",
	Short: "Concurrent co-simulation engine",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd executes a system description using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a co-simulation",
	Run: func(cmd *cobra.Command, args []string) {
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}
		cfg := runConfig{
			SystemPath: systemPath,
			OutputPath: outputPath,
			TraceLevel: trace.TraceLevel(traceLevel),
		}
		if cmd.Flags().Changed("method") {
			cfg.Method = method
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers = &workers
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = &seed
		}
		if err := runSimulation(cmd.Context(), cfg, os.Stdout); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command. An interrupt stops the run after the
// current macro step.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&systemPath, "system", "", "Path to the YAML system description")
	_ = runCmd.MarkFlagRequired("system")
	runCmd.Flags().StringVar(&method, "method", "", "Scheduling method (see `cosim methods`)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Worker pool size for pooled methods")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for stochastic components")
	runCmd.Flags().StringVar(&outputPath, "output", "", "Write recorded signals to this CSV file")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Trace level (none, waves, invocations)")
	runCmd.Flags().Lookup("trace").NoOptDefVal = string(trace.TraceLevelInvocations)

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
