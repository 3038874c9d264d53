// Package cli is the cobra front end for operating conductor jobs:
// running plans, inspecting checkpoints, and clearing state. Processing
// units are business logic linked in by the embedding application via
// SetPlanBuilder; the commands here only orchestrate.
package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/dnguyenv/conductor/internal/control"
	"github.com/dnguyenv/conductor/internal/core/config"
	"github.com/dnguyenv/conductor/internal/pipeline/scheduler"
)

var (
	cfgPath string
	isDebug bool
)

// PlanBuilder lets the embedding application register its processing
// units once the pipeline is wired. Register fallback extractors on
// p.Resolver() here too.
type PlanBuilder func(p *control.Pipeline) ([]scheduler.Level, error)

var planBuilder PlanBuilder

// SetPlanBuilder installs the application's execution plan. Must be
// called before Execute for the run command to do anything.
func SetPlanBuilder(b PlanBuilder) {
	planBuilder = b
}

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Batch analytics pipeline orchestrator",
	Long: `Conductor coordinates scheduled processing units over date-partitioned
warehouse tables: staged execution, fingerprint-based skipping, circuit
breaking, and resumable checkpointed backfills.`,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
}

// loadConfig loads .env, the YAML config, and configures logging.
func loadConfig() (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
	}
	slog.SetDefault(slog.New(handler))

	return cfg, nil
}
