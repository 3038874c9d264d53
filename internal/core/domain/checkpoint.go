package domain

import (
	"fmt"
	"sort"
	"time"
)

// CheckpointKey identifies the progress ledger of one ranged batch job.
type CheckpointKey struct {
	JobName string
	Range   DateRange
}

func (k CheckpointKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.JobName, k.Range.Start, k.Range.End)
}

// Checkpoint is the durable progress ledger for a ranged batch job.
// A date is never in more than one of the three sets simultaneously.
type Checkpoint struct {
	JobName            string    `json:"job_name"`
	StartDate          Date      `json:"start_date"`
	EndDate            Date      `json:"end_date"`
	CreatedAt          time.Time `json:"created_at"`
	LastUpdated        time.Time `json:"last_updated"`
	LastSuccessfulDate Date      `json:"last_successful_date,omitempty"`

	Successful []Date `json:"successful_dates"`
	Failed     []Date `json:"failed_dates"`
	Skipped    []Date `json:"skipped_dates"`

	// FailureReasons records the most recent error message per failed date.
	FailureReasons map[Date]string `json:"failure_reasons,omitempty"`
}

// NewCheckpoint creates an empty ledger for a job and range.
func NewCheckpoint(key CheckpointKey) *Checkpoint {
	now := time.Now().UTC()
	return &Checkpoint{
		JobName:        key.JobName,
		StartDate:      key.Range.Start,
		EndDate:        key.Range.End,
		CreatedAt:      now,
		LastUpdated:    now,
		FailureReasons: make(map[Date]string),
	}
}

// Key returns the identity of this ledger.
func (c *Checkpoint) Key() CheckpointKey {
	return CheckpointKey{JobName: c.JobName, Range: DateRange{Start: c.StartDate, End: c.EndDate}}
}

func removeDate(dates []Date, d Date) []Date {
	out := dates[:0]
	for _, x := range dates {
		if x != d {
			out = append(out, x)
		}
	}
	return out
}

func containsDate(dates []Date, d Date) bool {
	for _, x := range dates {
		if x == d {
			return true
		}
	}
	return false
}

func insertDate(dates []Date, d Date) []Date {
	if containsDate(dates, d) {
		return dates
	}
	dates = append(dates, d)
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	return dates
}

// MarkComplete records a successful date. Idempotent; a retry-success
// removes the date from the failed set.
func (c *Checkpoint) MarkComplete(d Date) {
	c.Failed = removeDate(c.Failed, d)
	c.Skipped = removeDate(c.Skipped, d)
	delete(c.FailureReasons, d)
	c.Successful = insertDate(c.Successful, d)
	if c.LastSuccessfulDate.IsZero() || d.After(c.LastSuccessfulDate) {
		c.LastSuccessfulDate = d
	}
	c.LastUpdated = time.Now().UTC()
}

// MarkFailed records a failed date with its error message.
func (c *Checkpoint) MarkFailed(d Date, reason string) {
	c.Successful = removeDate(c.Successful, d)
	c.Skipped = removeDate(c.Skipped, d)
	c.Failed = insertDate(c.Failed, d)
	if c.FailureReasons == nil {
		c.FailureReasons = make(map[Date]string)
	}
	c.FailureReasons[d] = reason
	c.LastUpdated = time.Now().UTC()
}

// MarkSkipped records a deliberately skipped date.
func (c *Checkpoint) MarkSkipped(d Date) {
	if containsDate(c.Successful, d) || containsDate(c.Failed, d) {
		return
	}
	c.Skipped = insertDate(c.Skipped, d)
	c.LastUpdated = time.Now().UTC()
}

// ResumeDate returns the day after the last successful date, bounded to
// the configured range. Returns (zero, false) when the range is already
// complete, and the range start when no progress exists.
func (c *Checkpoint) ResumeDate() (Date, bool) {
	if c.LastSuccessfulDate.IsZero() {
		return c.StartDate, true
	}
	next := c.LastSuccessfulDate.Next()
	if next.After(c.EndDate) {
		return "", false
	}
	if next.Before(c.StartDate) {
		return c.StartDate, true
	}
	return next, true
}

// Validate checks the structural invariants of a loaded record: required
// fields present and the three date sets pairwise disjoint.
func (c *Checkpoint) Validate() error {
	if c.JobName == "" {
		return fmt.Errorf("checkpoint missing job_name")
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return fmt.Errorf("checkpoint %s missing date range", c.JobName)
	}
	if c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("checkpoint %s range end %s precedes start %s", c.JobName, c.EndDate, c.StartDate)
	}
	seen := make(map[Date]string, len(c.Successful)+len(c.Failed)+len(c.Skipped))
	check := func(set string, dates []Date) error {
		for _, d := range dates {
			if _, err := ParseDate(string(d)); err != nil {
				return fmt.Errorf("checkpoint %s: %w", c.JobName, err)
			}
			if prev, ok := seen[d]; ok {
				return fmt.Errorf("checkpoint %s: date %s in both %s and %s", c.JobName, d, prev, set)
			}
			seen[d] = set
		}
		return nil
	}
	if err := check("successful_dates", c.Successful); err != nil {
		return err
	}
	if err := check("failed_dates", c.Failed); err != nil {
		return err
	}
	return check("skipped_dates", c.Skipped)
}

// CheckpointStats is the summary block of a ledger.
type CheckpointStats struct {
	TotalDays  int `json:"total_days"`
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Stats derives the summary counters from the date sets.
func (c *Checkpoint) Stats() CheckpointStats {
	r := DateRange{Start: c.StartDate, End: c.EndDate}
	return CheckpointStats{
		TotalDays:  r.Days(),
		Processed:  len(c.Successful) + len(c.Failed) + len(c.Skipped),
		Successful: len(c.Successful),
		Failed:     len(c.Failed),
		Skipped:    len(c.Skipped),
	}
}
