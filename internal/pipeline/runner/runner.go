// Package runner drives single unit invocations through the gate,
// reprocessing, breaker, and timeout layers, and fans ranged backfills
// out across a bounded worker pool with checkpointed resume.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dnguyenv/conductor/internal/core/domain"
	"github.com/dnguyenv/conductor/internal/pipeline/breaker"
	"github.com/dnguyenv/conductor/internal/pipeline/fingerprint"
	"github.com/dnguyenv/conductor/internal/pipeline/gate"
	"github.com/dnguyenv/conductor/internal/pipeline/metrics"
)

// Config tunes the per-invocation wrappers.
type Config struct {
	// Timeout is the wall-clock budget per unit invocation.
	Timeout time.Duration `yaml:"timeout"`

	// DisableTimeouts turns the wall-clock budget off globally, for
	// debugging.
	DisableTimeouts bool `yaml:"disable_timeouts"`

	// StrictReprocessing considers all sources when deciding
	// fingerprint skips; the default (lenient) considers only the
	// primary source.
	StrictReprocessing bool `yaml:"strict_reprocessing"`

	Breaker breaker.Config `yaml:"breaker"`
}

// DefaultConfig returns the defaults used when fields are unset.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Minute,
		Breaker: breaker.DefaultConfig(),
	}
}

// Runner composes the resilience layers around unit invocations.
// Breakers are unit-scoped and created lazily.
type Runner struct {
	cfg     Config
	gate    *gate.EarlyExitGate
	tracker *fingerprint.Tracker
	reproc  *fingerprint.Gate
	log     *slog.Logger

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
	probes   map[string]breaker.Probe
}

// Option configures a Runner.
type Option func(*Runner)

// WithEarlyExitGate installs the cheap pre-checks.
func WithEarlyExitGate(g *gate.EarlyExitGate) Option {
	return func(r *Runner) { r.gate = g }
}

// WithFingerprinting installs dependency checking and smart
// reprocessing.
func WithFingerprinting(t *fingerprint.Tracker, g *fingerprint.Gate) Option {
	return func(r *Runner) {
		r.tracker = t
		r.reproc = g
	}
}

// WithBreakerProbe installs an upstream-availability probe for one
// unit's breaker.
func WithBreakerProbe(unit string, p breaker.Probe) Option {
	return func(r *Runner) { r.probes[unit] = p }
}

// New builds a runner. All wrappers are optional; a bare runner only
// applies the timeout and breaker.
func New(cfg Config, opts ...Option) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	r := &Runner{
		cfg:      cfg,
		log:      slog.Default(),
		breakers: make(map[string]*breaker.Breaker),
		probes:   make(map[string]breaker.Probe),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) breakerFor(unit string) *breaker.Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[unit]
	if !ok {
		var opts []breaker.Option
		if p, ok := r.probes[unit]; ok {
			opts = append(opts, breaker.WithProbe(p))
		}
		b = breaker.New(unit, r.cfg.Breaker, opts...)
		r.breakers[unit] = b
	}
	return b
}

// Breaker exposes a unit's breaker, mainly for status reporting.
func (r *Runner) Breaker(unit string) *breaker.Breaker {
	return r.breakerFor(unit)
}

// RunUnit drives one invocation through every layer and returns its
// tagged outcome. Gate-level skips are successful no-ops with a reason
// code and are never counted as failures.
func (r *Runner) RunUnit(ctx context.Context, unit domain.Unit, opts domain.RunOptions) domain.Outcome {
	start := time.Now()
	outcome := r.run(ctx, unit, opts)
	outcome.Duration = time.Since(start)

	metrics.UnitRuns.WithLabelValues(unit.Name(), string(outcome.Status)).Inc()
	metrics.UnitDuration.WithLabelValues(unit.Name()).Observe(outcome.Duration.Seconds())

	switch outcome.Status {
	case domain.StatusSkipped:
		metrics.UnitSkips.WithLabelValues(unit.Name(), string(outcome.Reason)).Inc()
		r.log.Info("unit skipped",
			"unit", unit.Name(), "date", opts.Date,
			"reason", string(outcome.Reason), "detail", outcome.Detail)
	case domain.StatusFailed:
		r.log.Error("unit failed",
			"unit", unit.Name(), "date", opts.Date,
			"duration", outcome.Duration, "error", outcome.Err)
	default:
		r.log.Info("unit processed",
			"unit", unit.Name(), "date", opts.Date, "duration", outcome.Duration)
	}
	return outcome
}

func (r *Runner) run(ctx context.Context, unit domain.Unit, opts domain.RunOptions) domain.Outcome {
	opts.StrictReprocessing = opts.StrictReprocessing || r.cfg.StrictReprocessing

	if r.gate != nil {
		if skip := r.gate.Check(ctx, unit, opts); skip != nil {
			return *skip
		}
	}

	var check *domain.DependencyCheck
	if r.tracker != nil {
		check = r.tracker.Check(ctx, unit, domain.SingleDay(opts.Date))
		if err := r.tracker.Fatal(unit, check); err != nil {
			return domain.Failed(unit.Name(), opts.Date, err)
		}
	}

	if r.reproc != nil && !opts.ForceReprocess {
		if skip, reason := r.reproc.ShouldSkip(ctx, unit, opts.Date, opts.StrictReprocessing); skip {
			return domain.Skipped(unit.Name(), opts.Date, domain.SkipNoChange, reason)
		}
	}

	b := r.breakerFor(unit.Name())
	if err := b.Allow(ctx); err != nil {
		return domain.Skipped(unit.Name(), opts.Date, domain.SkipCircuitOpen,
			"breaker open, unit not invoked")
	}

	stats, err := r.invoke(ctx, unit, opts)
	if err != nil {
		b.RecordFailure()
		return domain.Failed(unit.Name(), opts.Date, err)
	}

	b.RecordSuccess()
	if r.reproc != nil && check != nil {
		r.reproc.RecordSuccess(ctx, unit.Name(), opts.Date, check.Fingerprints)
	}

	outcome := domain.Processed(unit.Name(), opts.Date, stats)
	if r.tracker != nil && check != nil {
		if issues := r.tracker.DegradationIssues(check); len(issues) > 0 {
			q := domain.NewQualityRecord(1, nil, unit.RelevantSources())
			for _, issue := range issues {
				q = q.WithPenalty(0.1, issue)
			}
			outcome.Quality = &q
		}
	}
	return outcome
}

// invoke runs the unit under the wall-clock budget. On timeout the
// unit's goroutine is abandoned with its context canceled; the produced
// error names the unit and the configured duration.
func (r *Runner) invoke(ctx context.Context, unit domain.Unit, opts domain.RunOptions) (map[string]any, error) {
	if r.cfg.DisableTimeouts {
		return unit.Run(ctx, opts)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		stats map[string]any
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := unit.Run(runCtx, opts)
		done <- result{stats: stats, err: err}
	}()

	timer := time.NewTimer(r.cfg.Timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.stats, res.err
	case <-timer.C:
		cancel()
		return nil, &domain.ProcessorTimeoutError{Unit: unit.Name(), Budget: r.cfg.Timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
