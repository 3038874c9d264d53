package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(clock *fakeClock, opts ...Option) *Breaker {
	cfg := Config{FailureThreshold: 3, Cooldown: 10 * time.Minute}
	opts = append(opts, WithClock(clock.Now))
	return New("player_features", cfg, opts...)
}

func TestOpensAtThreshold(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		if err := b.Allow(ctx); err != nil {
			t.Fatalf("breaker opened before threshold at failure %d", i+1)
		}
	}

	b.RecordFailure() // third consecutive failure
	if b.State() != StateOpen {
		t.Fatalf("expected open after threshold, got %s", b.State())
	}
	if err := b.Allow(ctx); !errors.Is(err, domain.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestSuccessResetsCount(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if err := b.Allow(ctx); err != nil {
		t.Error("breaker opened despite non-consecutive failures")
	}
}

func TestHalfOpenSingleTrial(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.Advance(11 * time.Minute)

	// Exactly one trial admitted after cooldown: the caller that drives
	// the open -> half-open transition takes the slot itself.
	if err := b.Allow(ctx); err != nil {
		t.Fatalf("expected trial admitted after cooldown: %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}
	for i := 0; i < 3; i++ {
		if err := b.Allow(ctx); !errors.Is(err, domain.ErrCircuitOpen) {
			t.Fatalf("caller %d admitted while the trial was in flight", i+2)
		}
	}

	// Trial success closes.
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Errorf("expected closed after trial success, got %s", b.State())
	}
}

func TestTrialFailureReopensAndResetsCooldown(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.Advance(11 * time.Minute)
	if err := b.Allow(ctx); err != nil {
		t.Fatal("trial not admitted")
	}
	b.RecordFailure()

	if b.State() != StateOpen {
		t.Fatalf("expected reopened, got %s", b.State())
	}

	// Cooldown clock restarted: 5 minutes later still open.
	clock.Advance(5 * time.Minute)
	if err := b.Allow(ctx); !errors.Is(err, domain.ErrCircuitOpen) {
		t.Error("breaker admitted call before restarted cooldown elapsed")
	}

	clock.Advance(6 * time.Minute)
	if err := b.Allow(ctx); err != nil {
		t.Error("breaker still closed after full cooldown")
	}
}

func TestProbeForcesEarlyHalfOpen(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}

	available := false
	b := newTestBreaker(clock, WithProbe(func(ctx context.Context) bool { return available }))

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}

	// Probe says unavailable: stays open.
	if err := b.Allow(ctx); !errors.Is(err, domain.ErrCircuitOpen) {
		t.Fatal("breaker admitted call while probe negative")
	}

	// Probe flips before the cooldown: early half-open, but still only
	// a single trial.
	available = true
	if err := b.Allow(ctx); err != nil {
		t.Fatalf("probe did not force half-open: %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}
	if err := b.Allow(ctx); !errors.Is(err, domain.ErrCircuitOpen) {
		t.Error("probe bypassed the single-trial step")
	}
}
