package fingerprint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dnguyenv/conductor/internal/core/domain"
	"github.com/dnguyenv/conductor/internal/infra/storage"
)

// Gate decides skip-vs-process by comparing the current upstream
// fingerprints against those recorded with the unit's most recent
// successful output. Every uncertainty fails open: when in doubt,
// process.
type Gate struct {
	tracker *Tracker
	repo    storage.FingerprintRepository
	log     *slog.Logger
}

// NewGate wires the tracker with the fingerprint history repository.
func NewGate(tracker *Tracker, repo storage.FingerprintRepository) *Gate {
	return &Gate{tracker: tracker, repo: repo, log: slog.Default()}
}

// ShouldSkip reports whether the unit's output for date is already
// current. checkAll=false (lenient, the default) considers only the
// primary source; checkAll=true (strict) considers every declared
// source. The returned reason explains the decision either way.
func (g *Gate) ShouldSkip(ctx context.Context, unit domain.Unit, date domain.Date, checkAll bool) (bool, string) {
	prior, err := g.repo.Get(ctx, unit.Name(), date)
	if err != nil {
		g.log.Warn("fingerprint history lookup failed, processing",
			"unit", unit.Name(), "date", date, "error", err)
		return false, "fingerprint history unavailable"
	}
	if len(prior) == 0 {
		return false, "no prior successful output"
	}

	check := g.tracker.Check(ctx, unit, domain.SingleDay(date))

	considered := unit.RelevantSources()
	if !checkAll && len(considered) > 1 {
		considered = considered[:1]
	}
	if len(considered) == 0 {
		return false, "unit declares no sources"
	}

	matched := make([]string, 0, len(considered))
	for _, source := range considered {
		current, ok := check.Fingerprints[source]
		if !ok {
			// Probe failure or source missing: fail open.
			return false, fmt.Sprintf("no current fingerprint for %s", source)
		}
		previous, ok := prior[source]
		if !ok || previous != current {
			return false, fmt.Sprintf("source %s changed", source)
		}
		matched = append(matched, source)
	}

	return true, fmt.Sprintf("unchanged sources: %s", strings.Join(matched, ", "))
}

// RecordSuccess persists the fingerprints that produced a successful
// output so future invocations can skip when nothing changed.
func (g *Gate) RecordSuccess(ctx context.Context, unit string, date domain.Date, fingerprints map[string]string) {
	if len(fingerprints) == 0 {
		return
	}
	if err := g.repo.Put(ctx, unit, date, fingerprints); err != nil {
		// Failure to record only costs a future skip opportunity.
		g.log.Warn("failed to record output fingerprints",
			"unit", unit, "date", date, "error", err)
	}
}
