// Package fingerprint checks upstream freshness and decides
// fingerprint-based skip-vs-process for each unit invocation.
package fingerprint

import (
	"context"
	"log/slog"
	"time"

	"github.com/dnguyenv/conductor/internal/core/domain"
	"github.com/dnguyenv/conductor/internal/infra/warehouse"
)

// SourcePolicy configures how one upstream source is judged.
type SourcePolicy struct {
	Name string `yaml:"name"`

	// Critical sources missing or stale are fatal to the unit;
	// non-critical ones only degrade quality.
	Critical bool `yaml:"critical"`

	// FreshnessBudget is how old the source's last update may be before
	// it is flagged stale. Zero means no staleness check.
	FreshnessBudget time.Duration `yaml:"freshness_budget"`
}

// Tracker computes per-source content fingerprints and freshness flags
// for a unit's declared upstream sources.
type Tracker struct {
	prober   warehouse.Prober
	policies map[string]SourcePolicy
	log      *slog.Logger
	nowFn    func() time.Time
}

// NewTracker indexes the policies by source name.
func NewTracker(prober warehouse.Prober, policies []SourcePolicy) *Tracker {
	idx := make(map[string]SourcePolicy, len(policies))
	for _, p := range policies {
		idx[p.Name] = p
	}
	return &Tracker{
		prober:   prober,
		policies: idx,
		log:      slog.Default(),
		nowFn:    time.Now,
	}
}

func (t *Tracker) policy(source string) SourcePolicy {
	if p, ok := t.policies[source]; ok {
		return p
	}
	return SourcePolicy{Name: source}
}

// Check probes every declared source of the unit for the date range.
// A probe error counts the source as missing but never aborts the
// check itself; fatality is decided by Fatal.
func (t *Tracker) Check(ctx context.Context, unit domain.Unit, r domain.DateRange) *domain.DependencyCheck {
	result := &domain.DependencyCheck{
		AllRequiredPresent: true,
		Fingerprints:       make(map[string]string),
	}

	for _, source := range unit.RelevantSources() {
		pol := t.policy(source)

		summary, err := t.prober.Summarize(ctx, source, r)
		if err != nil {
			t.log.Warn("dependency probe failed",
				"unit", unit.Name(), "source", source, "error", err)
			result.Missing = append(result.Missing, source)
			if pol.Critical {
				result.AllRequiredPresent = false
			}
			continue
		}

		if summary.RowCount == 0 {
			result.Missing = append(result.Missing, source)
			if pol.Critical {
				result.AllRequiredPresent = false
			}
			continue
		}

		if pol.FreshnessBudget > 0 && !summary.LastUpdated.IsZero() &&
			t.nowFn().Sub(summary.LastUpdated) > pol.FreshnessBudget {
			result.Stale = append(result.Stale, source)
			if pol.Critical {
				result.AllRequiredPresent = false
			}
		}

		fp := domain.SourceFingerprint{
			Source:      source,
			RowCount:    summary.RowCount,
			LastUpdated: summary.LastUpdated,
			ContentHash: summary.ContentHash,
		}
		result.Fingerprints[source] = fp.Hash()
	}

	return result
}

// Fatal converts a failed check into the unit-fatal error, or nil when
// the unit may proceed (possibly with degraded quality).
func (t *Tracker) Fatal(unit domain.Unit, check *domain.DependencyCheck) error {
	if check.AllRequiredPresent {
		return nil
	}
	missing := make([]string, 0, len(check.Missing))
	stale := make([]string, 0, len(check.Stale))
	for _, s := range check.Missing {
		if t.policy(s).Critical {
			missing = append(missing, s)
		}
	}
	for _, s := range check.Stale {
		if t.policy(s).Critical {
			stale = append(stale, s)
		}
	}
	return &domain.DependencyMissingError{Unit: unit.Name(), Missing: missing, Stale: stale}
}

// DegradationIssues returns the quality issue tags implied by
// non-critical missing or stale sources.
func (t *Tracker) DegradationIssues(check *domain.DependencyCheck) []string {
	var issues []string
	for _, s := range check.Missing {
		if !t.policy(s).Critical {
			issues = append(issues, domain.IssueSourceMissing+":"+s)
		}
	}
	for _, s := range check.Stale {
		if !t.policy(s).Critical {
			issues = append(issues, domain.IssueStaleSource+":"+s)
		}
	}
	return issues
}
