package domain

import "time"

// Status is the terminal state of one unit invocation.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// SkipReason is a machine-readable code explaining a skipped invocation.
type SkipReason string

const (
	SkipNoScheduledWork SkipReason = "no_scheduled_work"
	SkipBlackoutWindow  SkipReason = "blackout_window"
	SkipTooHistorical   SkipReason = "too_historical"
	SkipNoChange        SkipReason = "no_upstream_change"
	SkipCircuitOpen     SkipReason = "circuit_open"
	SkipEntityMissing   SkipReason = "entity_unprocessable"
)

// Outcome is the tagged result of a unit invocation. Callers branch on
// Status rather than catching error types: skips are successful no-ops
// and must never be counted as failures.
type Outcome struct {
	Unit     string
	Date     Date
	Status   Status
	Reason   SkipReason // set when Status == StatusSkipped
	Detail   string     // human-readable elaboration of Reason
	Err      error      // set when Status == StatusFailed
	Quality  *QualityRecord
	Stats    map[string]any
	Duration time.Duration
}

// Processed builds a successful outcome.
func Processed(unit string, date Date, stats map[string]any) Outcome {
	return Outcome{Unit: unit, Date: date, Status: StatusProcessed, Stats: stats}
}

// Skipped builds a no-op outcome with a reason code.
func Skipped(unit string, date Date, reason SkipReason, detail string) Outcome {
	return Outcome{Unit: unit, Date: date, Status: StatusSkipped, Reason: reason, Detail: detail}
}

// Failed builds a failure outcome.
func Failed(unit string, date Date, err error) Outcome {
	return Outcome{Unit: unit, Date: date, Status: StatusFailed, Err: err}
}

// OK reports whether the invocation should count as forward progress
// (processed or deliberately skipped).
func (o Outcome) OK() bool {
	return o.Status != StatusFailed
}
