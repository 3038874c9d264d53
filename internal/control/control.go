// Package control wires the orchestration layer together: storage,
// locking, probing, gates, and the runner are constructed once here and
// injected into each component, with no ambient globals.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/dnguyenv/conductor/internal/core/checkpoint"
	"github.com/dnguyenv/conductor/internal/core/config"
	"github.com/dnguyenv/conductor/internal/core/domain"
	redisclient "github.com/dnguyenv/conductor/internal/infra/redis"
	"github.com/dnguyenv/conductor/internal/infra/storage"
	"github.com/dnguyenv/conductor/internal/infra/storage/file"
	"github.com/dnguyenv/conductor/internal/infra/storage/memory"
	"github.com/dnguyenv/conductor/internal/infra/storage/postgres"
	"github.com/dnguyenv/conductor/internal/infra/warehouse"
	"github.com/dnguyenv/conductor/internal/pipeline/fallback"
	"github.com/dnguyenv/conductor/internal/pipeline/fingerprint"
	"github.com/dnguyenv/conductor/internal/pipeline/gate"
	"github.com/dnguyenv/conductor/internal/pipeline/runner"
	"github.com/dnguyenv/conductor/internal/pipeline/scheduler"
)

// Pipeline owns every shared component of one job process.
type Pipeline struct {
	cfg config.AppConfig
	log *slog.Logger

	db          *postgres.DB
	warehouseDB *sqlx.DB
	redisClient *redisclient.Client

	checkpoints *checkpoint.Store
	resolver    *fallback.Resolver
	runner      *runner.Runner
	server      *Server
}

// New constructs and connects everything the configuration asks for.
// Storage, locking, and auditing all degrade gracefully: no database
// means file checkpoints and no fingerprint gate, no redis means
// in-process locks and log-only audit events.
func New(ctx context.Context, cfg config.AppConfig) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, log: slog.Default()}

	var (
		checkpointRepo  storage.CheckpointRepository
		fingerprintRepo storage.FingerprintRepository
		workloadRepo    storage.WorkloadRepository
	)

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		db.StartMetricsCollector(ctx)
		p.db = db
		checkpointRepo = postgres.NewCheckpointRepo(db)
		fingerprintRepo = postgres.NewFingerprintRepo(db)
		p.log.Info("using PostgreSQL checkpoint storage")
	} else {
		repo, err := file.NewCheckpointRepo(cfg.Pipeline.CheckpointDir)
		if err != nil {
			return nil, err
		}
		checkpointRepo = repo
		fingerprintRepo = memory.NewFingerprintRepo(memory.NewMemoryStorage())
		p.log.Info("using file checkpoint storage", "dir", cfg.Pipeline.CheckpointDir)
	}

	var locker checkpoint.Locker
	var emitter fallback.Emitter
	if cfg.Redis.URL != "" {
		rds, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		p.redisClient = rds
		locker = redisclient.NewLocker(rds)
		emitter = redisclient.NewEventStream(rds)
		p.log.Info("using redis for distributed locking and audit events")
	} else {
		locker = checkpoint.NewKeyedMutex()
		emitter = fallback.LogEmitter{}
	}

	p.checkpoints = checkpoint.NewStore(checkpointRepo, locker)
	p.resolver = fallback.NewResolver(cfg.Datasets, emitter)

	runnerOpts := []runner.Option{}

	if cfg.Warehouse.URL != "" {
		wdb, err := sqlx.Open("pgx", cfg.Warehouse.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open warehouse: %w", err)
		}
		if err := wdb.PingContext(ctx); err != nil {
			wdb.Close()
			return nil, fmt.Errorf("failed to ping warehouse: %w", err)
		}
		p.warehouseDB = wdb

		prober := warehouse.NewPostgresProber(wdb, cfg.Warehouse.Tables)
		tracker := fingerprint.NewTracker(prober, cfg.Sources)
		reproc := fingerprint.NewGate(tracker, fingerprintRepo)
		runnerOpts = append(runnerOpts, runner.WithFingerprinting(tracker, reproc))

		if cfg.Pipeline.Gate.CheckScheduledWork {
			if p.db != nil {
				workloadRepo = postgres.NewWorkloadRepo(p.db,
					cfg.Warehouse.ScheduleTable,
					cfg.Warehouse.ScheduleUnitColumn,
					cfg.Warehouse.ScheduleDateColumn)
			}
		}
	}

	runnerOpts = append(runnerOpts,
		runner.WithEarlyExitGate(gate.New(cfg.Pipeline.Gate, workloadRepo)))
	p.runner = runner.New(cfg.Pipeline.Runner, runnerOpts...)

	p.server = NewServer(p, cfg.Server.Port)
	return p, nil
}

// Checkpoints exposes the shared checkpoint store.
func (p *Pipeline) Checkpoints() *checkpoint.Store { return p.checkpoints }

// Resolver exposes the fallback source resolver so the embedding
// application can register extractors.
func (p *Pipeline) Resolver() *fallback.Resolver { return p.resolver }

// Runner exposes the unit runner.
func (p *Pipeline) Runner() *runner.Runner { return p.runner }

// NewBackfill builds a checkpointed ranged driver over a staged plan.
func (p *Pipeline) NewBackfill(job string, levels []scheduler.Level, cfg runner.BackfillConfig) (*runner.Backfill, error) {
	sched, err := scheduler.New(p.runner, levels)
	if err != nil {
		return nil, err
	}
	return runner.NewBackfill(job, sched, p.checkpoints, cfg), nil
}

// RunOnce executes a staged plan for a single date without checkpoint
// bookkeeping, for daily incremental runs.
func (p *Pipeline) RunOnce(ctx context.Context, levels []scheduler.Level, opts domain.RunOptions) (map[string]domain.Outcome, error) {
	sched, err := scheduler.New(p.runner, levels)
	if err != nil {
		return nil, err
	}
	return sched.Run(ctx, opts)
}

// StartServer starts the health/metrics HTTP server in the background.
func (p *Pipeline) StartServer() {
	go func() {
		if err := p.server.Start(); err != nil {
			p.log.Error("health server stopped", "error", err)
		}
	}()
}

// Close releases every connection.
func (p *Pipeline) Close(ctx context.Context) {
	if p.server != nil {
		_ = p.server.Stop(ctx)
	}
	if p.warehouseDB != nil {
		_ = p.warehouseDB.Close()
	}
	if p.db != nil {
		_ = p.db.Close()
	}
	if p.redisClient != nil {
		_ = p.redisClient.Close()
	}
}
