// Package breaker implements per-unit circuit breaking: after a run of
// consecutive failures the unit is short-circuited until a cooldown
// elapses, then a single trial invocation decides whether to close.
package breaker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dnguyenv/conductor/internal/core/domain"
	"github.com/dnguyenv/conductor/internal/pipeline/metrics"
)

// State is the breaker's position in the state machine.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Probe optionally reports that the upstream looks available again,
// forcing an early open -> half-open transition before the cooldown.
// It never bypasses the half-open single-trial step.
type Probe func(ctx context.Context) bool

// Config tunes one breaker.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		Cooldown:         10 * time.Minute,
	}
}

// Breaker is one unit's circuit breaker. State is unit-scoped; no
// cross-unit coordination is needed.
type Breaker struct {
	mu sync.Mutex

	unit  string
	cfg   Config
	probe Probe
	log   *slog.Logger
	nowFn func() time.Time

	state       State
	consecutive int
	openedAt    time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithProbe installs an upstream-availability probe.
func WithProbe(p Probe) Option {
	return func(b *Breaker) { b.probe = p }
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.nowFn = now }
}

// New creates a closed breaker for a unit.
func New(unit string, cfg Config, opts ...Option) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	b := &Breaker{
		unit:  unit,
		cfg:   cfg,
		log:   slog.Default().With("unit", unit),
		nowFn: time.Now,
		state: StateClosed,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Allow reports whether an invocation may proceed. While open it
// returns domain.ErrCircuitOpen, which callers translate into a
// Skipped outcome rather than a failure. In half-open state exactly
// one caller is admitted as the trial.
func (b *Breaker) Allow(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.cooldownElapsed() || b.probeSaysAvailable(ctx) {
			// The caller driving the transition is the trial.
			b.transition(StateHalfOpen)
			return nil
		}
		return domain.ErrCircuitOpen

	case StateHalfOpen:
		// The trial is already in flight.
		return domain.ErrCircuitOpen
	}
	return nil
}

func (b *Breaker) cooldownElapsed() bool {
	return b.nowFn().Sub(b.openedAt) >= b.cfg.Cooldown
}

func (b *Breaker) probeSaysAvailable(ctx context.Context) bool {
	if b.probe == nil {
		return false
	}
	return b.probe(ctx)
}

// RecordSuccess resets the breaker to closed.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive = 0
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// RecordFailure counts a consecutive failure; at the threshold the
// breaker opens. A half-open trial failure reopens and resets the
// cooldown clock.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.open()
		return
	}

	b.consecutive++
	if b.state == StateClosed && b.consecutive >= b.cfg.FailureThreshold {
		b.open()
	}
}

func (b *Breaker) open() {
	b.openedAt = b.nowFn()
	b.transition(StateOpen)
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	b.log.Info("circuit breaker transition", "from", b.state.String(), "to", to.String())
	b.state = to
	metrics.BreakerTransitions.WithLabelValues(b.unit, to.String()).Inc()
	metrics.BreakerState.WithLabelValues(b.unit).Set(float64(stateGauge(to)))
}

func stateGauge(s State) int {
	switch s {
	case StateClosed:
		return 0
	case StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure run length.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutive
}
