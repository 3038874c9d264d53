package domain

import (
	"testing"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%s): %v", s, err)
	}
	return d
}

func testKey(t *testing.T) CheckpointKey {
	t.Helper()
	return CheckpointKey{
		JobName: "X",
		Range: DateRange{
			Start: mustDate(t, "2024-01-01"),
			End:   mustDate(t, "2024-01-10"),
		},
	}
}

func TestMarkCompleteIdempotent(t *testing.T) {
	cp := NewCheckpoint(testKey(t))
	d := mustDate(t, "2024-01-03")

	cp.MarkComplete(d)
	first := len(cp.Successful)
	cp.MarkComplete(d)

	if len(cp.Successful) != first {
		t.Errorf("expected %d successful dates after repeat, got %d", first, len(cp.Successful))
	}
	if cp.LastSuccessfulDate != d {
		t.Errorf("expected last successful %s, got %s", d, cp.LastSuccessfulDate)
	}
}

func TestDateSetsMutuallyExclusive(t *testing.T) {
	cp := NewCheckpoint(testKey(t))
	d := mustDate(t, "2024-01-02")

	cp.MarkFailed(d, "boom")
	if !containsDate(cp.Failed, d) {
		t.Fatal("expected date in failed set")
	}

	// Retry-success overwrites the failure.
	cp.MarkComplete(d)
	if containsDate(cp.Failed, d) {
		t.Error("date still in failed set after MarkComplete")
	}
	if !containsDate(cp.Successful, d) {
		t.Error("date missing from successful set after MarkComplete")
	}
	if _, ok := cp.FailureReasons[d]; ok {
		t.Error("failure reason survived retry-success")
	}

	if err := cp.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestMarkSkippedDoesNotDemote(t *testing.T) {
	cp := NewCheckpoint(testKey(t))
	d := mustDate(t, "2024-01-04")

	cp.MarkComplete(d)
	cp.MarkSkipped(d)

	if containsDate(cp.Skipped, d) {
		t.Error("completed date was moved to skipped")
	}
	if !containsDate(cp.Successful, d) {
		t.Error("completed date lost")
	}
}

func TestResumeDate(t *testing.T) {
	cp := NewCheckpoint(testKey(t))

	// No progress: resume at range start.
	resume, ok := cp.ResumeDate()
	if !ok || resume != mustDate(t, "2024-01-01") {
		t.Errorf("expected resume at range start, got (%s, %v)", resume, ok)
	}

	// Mark 01..05: resume at 06.
	for d := mustDate(t, "2024-01-01"); !d.After(mustDate(t, "2024-01-05")); d = d.Next() {
		cp.MarkComplete(d)
	}
	resume, ok = cp.ResumeDate()
	if !ok || resume != mustDate(t, "2024-01-06") {
		t.Errorf("expected resume at 2024-01-06, got (%s, %v)", resume, ok)
	}

	// Full range complete.
	for d := mustDate(t, "2024-01-06"); !d.After(mustDate(t, "2024-01-10")); d = d.Next() {
		cp.MarkComplete(d)
	}
	if _, ok := cp.ResumeDate(); ok {
		t.Error("expected complete range to report no resume date")
	}
}

func TestValidateRejectsOverlap(t *testing.T) {
	cp := NewCheckpoint(testKey(t))
	d := mustDate(t, "2024-01-02")
	cp.Successful = []Date{d}
	cp.Failed = []Date{d}

	if err := cp.Validate(); err == nil {
		t.Error("expected validation error for overlapping sets")
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cp := &Checkpoint{}
	if err := cp.Validate(); err == nil {
		t.Error("expected validation error for empty record")
	}

	cp = NewCheckpoint(testKey(t))
	cp.StartDate, cp.EndDate = cp.EndDate, cp.StartDate
	if err := cp.Validate(); err == nil {
		t.Error("expected validation error for inverted range")
	}
}

func TestStats(t *testing.T) {
	cp := NewCheckpoint(testKey(t))
	cp.MarkComplete(mustDate(t, "2024-01-01"))
	cp.MarkFailed(mustDate(t, "2024-01-02"), "boom")
	cp.MarkSkipped(mustDate(t, "2024-01-03"))

	stats := cp.Stats()
	if stats.TotalDays != 10 {
		t.Errorf("expected 10 total days, got %d", stats.TotalDays)
	}
	if stats.Processed != 3 || stats.Successful != 1 || stats.Failed != 1 || stats.Skipped != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
