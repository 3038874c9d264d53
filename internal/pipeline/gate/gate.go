// Package gate implements cheap pre-checks that bypass a unit before
// any real work is scheduled. All checks fail open on infrastructure
// error: uncertainty must never block processing.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dnguyenv/conductor/internal/core/domain"
	"github.com/dnguyenv/conductor/internal/infra/storage"
)

// BlackoutWindow is a seasonal [From, To] window in MM-DD form,
// inclusive on both ends. Windows may wrap the year end
// (e.g. From="12-20", To="01-05").
type BlackoutWindow struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Contains reports whether the date's month-day falls in the window.
// Zero or malformed dates are never in a window.
func (w BlackoutWindow) Contains(d domain.Date) bool {
	if len(d) != len(domain.DateLayout) {
		return false
	}
	md := string(d)[5:] // MM-DD
	if w.From <= w.To {
		return md >= w.From && md <= w.To
	}
	// Wrapping window.
	return md >= w.From || md <= w.To
}

// Config toggles the individual checks per gate.
type Config struct {
	CheckScheduledWork bool             `yaml:"check_scheduled_work"`
	Blackouts          []BlackoutWindow `yaml:"blackouts"`

	// HistoricalCutoffDays skips dates older than this many days before
	// today. Zero disables the check. The only check bypassable by
	// backfill mode.
	HistoricalCutoffDays int `yaml:"historical_cutoff_days"`
}

// EarlyExitGate evaluates the pre-checks for one unit invocation.
type EarlyExitGate struct {
	cfg      Config
	workload storage.WorkloadRepository
	log      *slog.Logger
	nowFn    func() time.Time
}

// New builds a gate; workload may be nil, disabling the scheduled-work
// check regardless of configuration.
func New(cfg Config, workload storage.WorkloadRepository) *EarlyExitGate {
	return &EarlyExitGate{
		cfg:      cfg,
		workload: workload,
		log:      slog.Default(),
		nowFn:    time.Now,
	}
}

// Check returns a skip outcome when any enabled pre-check fires, or
// (nil) when the unit should proceed. The first firing check wins.
func (g *EarlyExitGate) Check(ctx context.Context, unit domain.Unit, opts domain.RunOptions) *domain.Outcome {
	if g.cfg.CheckScheduledWork && g.workload != nil {
		count, err := g.workload.CountScheduled(ctx, unit.Name(), opts.Date)
		switch {
		case err != nil:
			// Fail open: the probe erring must not block processing.
			g.log.Warn("scheduled-work probe failed, proceeding",
				"unit", unit.Name(), "date", opts.Date, "error", err)
		case count == 0:
			out := domain.Skipped(unit.Name(), opts.Date, domain.SkipNoScheduledWork,
				"no work items scheduled")
			return &out
		}
	}

	for _, w := range g.cfg.Blackouts {
		if w.Contains(opts.Date) {
			out := domain.Skipped(unit.Name(), opts.Date, domain.SkipBlackoutWindow,
				fmt.Sprintf("date in blackout window %s..%s", w.From, w.To))
			return &out
		}
	}

	if g.cfg.HistoricalCutoffDays > 0 && !opts.BackfillMode {
		cutoff := domain.DateOf(g.nowFn()).AddDays(-g.cfg.HistoricalCutoffDays)
		if opts.Date.Before(cutoff) {
			out := domain.Skipped(unit.Name(), opts.Date, domain.SkipTooHistorical,
				fmt.Sprintf("date older than cutoff %s", cutoff))
			return &out
		}
	}

	return nil
}
