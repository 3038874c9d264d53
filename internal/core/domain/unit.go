package domain

import "context"

// Unit is one schedulable piece of business logic producing output for
// a date from upstream data. Implementations live outside this core;
// the orchestrator only relies on this contract.
type Unit interface {
	// Name is the unit's identity, unique within a job definition.
	Name() string

	// Dependencies lists the names of units that must succeed in an
	// earlier level before this unit may run.
	Dependencies() []string

	// RelevantSources lists the upstream source names this unit reads.
	// Used both for dependency fingerprinting and as a cheap upfront
	// "does this source matter to me" filter.
	RelevantSources() []string

	// Run executes the unit's business logic. A nil error means the
	// output for opts.Date was written. Returned stats are attached to
	// the invocation outcome.
	Run(ctx context.Context, opts RunOptions) (map[string]any, error)
}

// RunOptions carries per-invocation parameters into a unit.
type RunOptions struct {
	Date  Date
	Range DateRange

	// BackfillMode bypasses the historical-cutoff early-exit check and
	// is set by backfill drivers.
	BackfillMode bool

	// StrictReprocessing considers all sources (not just the primary)
	// when deciding fingerprint-based skips.
	StrictReprocessing bool

	// ForceReprocess disables fingerprint-based skipping entirely.
	ForceReprocess bool
}

// SourceMatters reports whether a source name is in the unit's declared
// relevant-source set.
func SourceMatters(u Unit, source string) bool {
	for _, s := range u.RelevantSources() {
		if s == source {
			return true
		}
	}
	return false
}
