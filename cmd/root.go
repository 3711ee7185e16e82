package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel   string // Log verbosity level
	configPath string // Experiment config file
	seed       int64  // Overrides the config seed when set
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "plper",
	Short: "Sparse Pauli-Lindblad noise learning and probabilistic error reduction",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// loadConfig reads --config and applies a --seed given on the command line.
func loadConfig(cmd *cobra.Command) *ExperimentConfig {
	cfg, err := LoadExperimentConfig(configPath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	if cmd.Flags().Changed("seed") {
		logrus.Infof("Seed %d overrides config seed %d", seed, cfg.Seed)
		cfg.Seed = seed
	}
	return cfg
}

// Execute runs the CLI root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "plper.yaml", "Experiment config file")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "Seed for instance generation and the simulator (overrides the config)")

	learnCmd.Flags().StringVar(&noisePath, "out", "noise.yaml", "File the learned noise data frame is written to")
	mitigateCmd.Flags().StringVar(&noisePath, "noise", "noise.yaml", "Noise data frame written by learn")

	rootCmd.AddCommand(basesCmd)
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(mitigateCmd)
}
