package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrCircuitOpen is returned by the breaker while short-circuiting.
	// Callers translate it into a Skipped outcome, never a failure.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrCheckpointNotFound is returned when no ledger exists for a key.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrNoFallbackChain is returned when a logical dataset has no
	// configured chain.
	ErrNoFallbackChain = errors.New("no fallback chain configured")
)

// DependencyMissingError signals that a critical upstream source is
// absent or too stale. Fatal to the unit.
type DependencyMissingError struct {
	Unit    string
	Missing []string
	Stale   []string
}

func (e *DependencyMissingError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Stale) > 0 {
		parts = append(parts, "stale "+strings.Join(e.Stale, ", "))
	}
	return fmt.Sprintf("unit %s: critical dependencies unavailable: %s", e.Unit, strings.Join(parts, "; "))
}

// DependencyFailureError signals that a named upstream unit failed
// during staged execution. Fatal to dependents, non-fatal to unrelated
// siblings.
type DependencyFailureError struct {
	Unit       string
	Dependency string
	Cause      error
}

func (e *DependencyFailureError) Error() string {
	return fmt.Sprintf("unit %s blocked: dependency %s failed", e.Unit, e.Dependency)
}

func (e *DependencyFailureError) Unwrap() error { return e.Cause }

// ProcessorTimeoutError signals that a unit exceeded its wall-clock
// budget. Counts as a failure for breaker and checkpoint bookkeeping.
type ProcessorTimeoutError struct {
	Unit   string
	Budget time.Duration
}

func (e *ProcessorTimeoutError) Error() string {
	return fmt.Sprintf("unit %s exceeded wall-clock budget of %s", e.Unit, e.Budget)
}

// FallbackExhaustedError signals that every source in a chain failed
// and the terminal policy is PolicyFail.
type FallbackExhaustedError struct {
	Dataset   string
	Attempted []string
}

func (e *FallbackExhaustedError) Error() string {
	return fmt.Sprintf("dataset %s: all sources exhausted (tried %s)", e.Dataset, strings.Join(e.Attempted, ", "))
}
