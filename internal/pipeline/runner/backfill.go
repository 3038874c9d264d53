package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dnguyenv/conductor/internal/core/checkpoint"
	"github.com/dnguyenv/conductor/internal/core/domain"
	"github.com/dnguyenv/conductor/internal/pipeline/scheduler"
)

// BackfillConfig tunes a ranged run.
type BackfillConfig struct {
	// Workers bounds the per-date fan-out. Defaults to 1 (sequential).
	Workers int `yaml:"workers"`

	// Resume continues from the checkpoint instead of the range start.
	Resume bool `yaml:"resume"`
}

// Report summarizes a ranged run. FailedDates is the explicit retry
// affordance: feed it back through RetryFailures.
type Report struct {
	Job        string
	Range      domain.DateRange
	Resumed    domain.Date
	Processed  int
	Succeeded  int
	Failed     int
	SkippedAll int

	FailedDates []domain.Date
	Failures    map[domain.Date]error
}

// Backfill runs the staged plan for every date in the range through a
// bounded worker pool, recording per-date outcomes in the checkpoint
// store. A canceled or killed run leaves the checkpoint reflecting
// exactly the work completed so far.
type Backfill struct {
	job         string
	sched       *scheduler.Scheduler
	checkpoints *checkpoint.Store
	cfg         BackfillConfig
	log         *slog.Logger
}

// NewBackfill wires a staged plan with the checkpoint store.
func NewBackfill(job string, sched *scheduler.Scheduler, store *checkpoint.Store, cfg BackfillConfig) *Backfill {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Backfill{
		job:         job,
		sched:       sched,
		checkpoints: store,
		cfg:         cfg,
		log:         slog.Default().With("job", job),
	}
}

// Run processes the range. Genuine failures are recorded per date and
// aggregated into the report; only context cancellation aborts the run.
func (b *Backfill) Run(ctx context.Context, r domain.DateRange, opts domain.RunOptions) (*Report, error) {
	key := domain.CheckpointKey{JobName: b.job, Range: r}
	report := &Report{
		Job:      b.job,
		Range:    r,
		Failures: make(map[domain.Date]error),
	}

	start := r.Start
	if b.cfg.Resume {
		resume, ok, err := b.checkpoints.ResumeDate(ctx, key)
		if err != nil {
			return report, fmt.Errorf("failed to read checkpoint: %w", err)
		}
		if !ok {
			b.log.Info("range already complete", "range", r.String())
			return report, nil
		}
		start = resume
	}
	report.Resumed = start
	b.log.Info("starting ranged run",
		"range", r.String(), "from", start, "workers", b.cfg.Workers)

	pending := domain.DateRange{Start: start, End: r.End}.Dates()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, b.cfg.Workers)
	)

	for _, date := range pending {
		select {
		case <-ctx.Done():
			wg.Wait()
			return report, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(date domain.Date) {
			defer wg.Done()
			defer func() { <-sem }()

			dayOpts := opts
			dayOpts.Date = date
			dayOpts.Range = domain.SingleDay(date)

			dayErr, allSkipped := b.runDate(ctx, key, date, dayOpts)

			mu.Lock()
			defer mu.Unlock()
			report.Processed++
			switch {
			case dayErr != nil:
				report.Failed++
				report.FailedDates = append(report.FailedDates, date)
				report.Failures[date] = dayErr
			case allSkipped:
				report.SkippedAll++
			default:
				report.Succeeded++
			}
		}(date)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return report, err
	}

	b.log.Info("ranged run finished",
		"succeeded", report.Succeeded, "failed", report.Failed, "skipped", report.SkippedAll)
	return report, nil
}

// runDate executes the staged plan for one date and records the ledger
// entry. Returns the date's failure (nil on success) and whether every
// unit was a gate-level skip.
func (b *Backfill) runDate(ctx context.Context, key domain.CheckpointKey, date domain.Date, opts domain.RunOptions) (error, bool) {
	results, err := b.sched.Run(ctx, opts)

	var firstFailure error = err
	allSkipped := len(results) > 0
	for _, res := range results {
		switch res.Status {
		case domain.StatusFailed:
			if firstFailure == nil {
				firstFailure = res.Err
			}
			allSkipped = false
		case domain.StatusProcessed:
			allSkipped = false
		}
	}

	switch {
	case firstFailure != nil:
		if markErr := b.checkpoints.MarkFailed(ctx, key, date, firstFailure); markErr != nil {
			b.log.Error("failed to record failure", "date", date, "error", markErr)
		}
		return firstFailure, false
	case allSkipped:
		if markErr := b.checkpoints.MarkSkipped(ctx, key, date); markErr != nil {
			b.log.Error("failed to record skip", "date", date, "error", markErr)
		}
		return nil, true
	default:
		if markErr := b.checkpoints.MarkComplete(ctx, key, date); markErr != nil {
			b.log.Error("failed to record completion", "date", date, "error", markErr)
		}
		return nil, false
	}
}

// RetryFailures re-runs exactly the dates recorded as failed in the
// checkpoint. A retry-success overwrites the failure in the ledger.
func (b *Backfill) RetryFailures(ctx context.Context, r domain.DateRange, opts domain.RunOptions) (*Report, error) {
	key := domain.CheckpointKey{JobName: b.job, Range: r}
	cp, _, err := b.checkpoints.Summary(ctx, key)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Job:      b.job,
		Range:    r,
		Failures: make(map[domain.Date]error),
	}

	opts.ForceReprocess = true
	for _, date := range cp.Failed {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		dayOpts := opts
		dayOpts.Date = date
		dayOpts.Range = domain.SingleDay(date)

		dayErr, _ := b.runDate(ctx, key, date, dayOpts)
		report.Processed++
		if dayErr != nil {
			report.Failed++
			report.FailedDates = append(report.FailedDates, date)
			report.Failures[date] = dayErr
		} else {
			report.Succeeded++
		}
	}
	return report, nil
}
