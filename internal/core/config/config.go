package config

import (
	"github.com/dnguyenv/conductor/internal/core/domain"
	"github.com/dnguyenv/conductor/internal/infra/warehouse"
	"github.com/dnguyenv/conductor/internal/pipeline/fingerprint"
	"github.com/dnguyenv/conductor/internal/pipeline/gate"
	"github.com/dnguyenv/conductor/internal/pipeline/runner"

	redisclient "github.com/dnguyenv/conductor/internal/infra/redis"
	"github.com/dnguyenv/conductor/internal/infra/storage/postgres"
)

// AppConfig is the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  postgres.Config    `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
	Pipeline  PipelineConfig     `yaml:"pipeline"`
	Warehouse WarehouseConfig    `yaml:"warehouse"`

	// Sources configures per-source criticality and freshness budgets.
	Sources []fingerprint.SourcePolicy `yaml:"sources"`

	// Datasets configures the fallback chain per logical dataset.
	Datasets []domain.FallbackChain `yaml:"datasets"`
}

// ServerConfig holds the health/metrics HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// PipelineConfig groups the orchestration knobs.
type PipelineConfig struct {
	Runner   runner.Config         `yaml:"runner"`
	Gate     gate.Config           `yaml:"gate"`
	Backfill runner.BackfillConfig `yaml:"backfill"`

	// CheckpointDir is where file-based checkpoints live when no
	// database is configured.
	CheckpointDir string `yaml:"checkpoint_dir"`
}

// WarehouseConfig maps logical sources onto warehouse tables and names
// the schedule table read by the early-exit gate.
type WarehouseConfig struct {
	URL    string                `yaml:"url"`
	Tables []warehouse.TableSpec `yaml:"tables"`

	ScheduleTable      string `yaml:"schedule_table"`
	ScheduleUnitColumn string `yaml:"schedule_unit_column"`
	ScheduleDateColumn string `yaml:"schedule_date_column"`
}
