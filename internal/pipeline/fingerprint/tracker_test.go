package fingerprint

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/dnguyenv/conductor/internal/core/domain"
	"github.com/dnguyenv/conductor/internal/infra/warehouse"
)

type fakeUnit struct {
	name    string
	sources []string
}

func (u *fakeUnit) Name() string              { return u.name }
func (u *fakeUnit) Dependencies() []string    { return nil }
func (u *fakeUnit) RelevantSources() []string { return u.sources }
func (u *fakeUnit) Run(ctx context.Context, opts domain.RunOptions) (map[string]any, error) {
	return nil, nil
}

type fakeProber struct {
	summaries map[string]*warehouse.Summary
	errs      map[string]error
	calls     []string
}

func (p *fakeProber) Summarize(ctx context.Context, table string, r domain.DateRange) (*warehouse.Summary, error) {
	p.calls = append(p.calls, table)
	if err := p.errs[table]; err != nil {
		return nil, err
	}
	if s, ok := p.summaries[table]; ok {
		return s, nil
	}
	return &warehouse.Summary{}, nil
}

var probeTime = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTracker(prober warehouse.Prober, policies []SourcePolicy) *Tracker {
	t := NewTracker(prober, policies)
	t.nowFn = func() time.Time { return probeTime }
	return t
}

func TestCheckAllPresent(t *testing.T) {
	prober := &fakeProber{summaries: map[string]*warehouse.Summary{
		"events":   {RowCount: 100, LastUpdated: probeTime.Add(-time.Hour)},
		"entities": {RowCount: 42, LastUpdated: probeTime.Add(-2 * time.Hour)},
	}}
	tr := newTracker(prober, []SourcePolicy{
		{Name: "events", Critical: true, FreshnessBudget: 24 * time.Hour},
		{Name: "entities", Critical: true, FreshnessBudget: 24 * time.Hour},
	})

	unit := &fakeUnit{name: "daily", sources: []string{"events", "entities"}}
	check := tr.Check(context.Background(), unit, domain.SingleDay("2024-06-14"))

	if !check.AllRequiredPresent {
		t.Fatalf("all sources present but check failed: %+v", check)
	}
	if len(check.Fingerprints) != 2 {
		t.Errorf("expected fingerprints for both sources, got %v", check.Fingerprints)
	}
	if err := tr.Fatal(unit, check); err != nil {
		t.Errorf("Fatal on a passing check: %v", err)
	}
}

func TestCheckCriticalMissingIsFatal(t *testing.T) {
	prober := &fakeProber{summaries: map[string]*warehouse.Summary{
		"entities": {RowCount: 42},
	}}
	tr := newTracker(prober, []SourcePolicy{
		{Name: "events", Critical: true},
	})

	unit := &fakeUnit{name: "daily", sources: []string{"events", "entities"}}
	check := tr.Check(context.Background(), unit, domain.SingleDay("2024-06-14"))

	if check.AllRequiredPresent {
		t.Fatal("critical source with zero rows passed the check")
	}
	err := tr.Fatal(unit, check)
	var depErr *domain.DependencyMissingError
	if !errors.As(err, &depErr) {
		t.Fatalf("expected DependencyMissingError, got %v", err)
	}
	if !slices.Contains(depErr.Missing, "events") {
		t.Errorf("error does not name the missing source: %+v", depErr)
	}
}

func TestCheckProbeErrorCountsAsMissing(t *testing.T) {
	prober := &fakeProber{errs: map[string]error{"events": errors.New("timeout")}}
	tr := newTracker(prober, []SourcePolicy{{Name: "events", Critical: true}})

	unit := &fakeUnit{name: "daily", sources: []string{"events"}}
	check := tr.Check(context.Background(), unit, domain.SingleDay("2024-06-14"))

	if check.AllRequiredPresent || !slices.Contains(check.Missing, "events") {
		t.Errorf("probe error not treated as missing: %+v", check)
	}
}

func TestCheckStaleness(t *testing.T) {
	prober := &fakeProber{summaries: map[string]*warehouse.Summary{
		"events": {RowCount: 100, LastUpdated: probeTime.Add(-48 * time.Hour)},
	}}

	// Stale non-critical source degrades but is not fatal.
	tr := newTracker(prober, []SourcePolicy{
		{Name: "events", FreshnessBudget: 24 * time.Hour},
	})
	unit := &fakeUnit{name: "daily", sources: []string{"events"}}
	check := tr.Check(context.Background(), unit, domain.SingleDay("2024-06-14"))

	if !slices.Contains(check.Stale, "events") {
		t.Fatalf("stale source not flagged: %+v", check)
	}
	if !check.AllRequiredPresent {
		t.Error("non-critical staleness marked fatal")
	}
	issues := tr.DegradationIssues(check)
	if !slices.Contains(issues, domain.IssueStaleSource+":events") {
		t.Errorf("missing staleness degradation issue: %v", issues)
	}

	// Same source marked critical becomes fatal.
	tr = newTracker(prober, []SourcePolicy{
		{Name: "events", Critical: true, FreshnessBudget: 24 * time.Hour},
	})
	check = tr.Check(context.Background(), unit, domain.SingleDay("2024-06-14"))
	if check.AllRequiredPresent {
		t.Error("critical staleness not fatal")
	}
}

func TestDegradationIssuesForMissing(t *testing.T) {
	prober := &fakeProber{}
	tr := newTracker(prober, nil) // no policy: optional by default

	unit := &fakeUnit{name: "daily", sources: []string{"optional_feed"}}
	check := tr.Check(context.Background(), unit, domain.SingleDay("2024-06-14"))

	if !check.AllRequiredPresent {
		t.Fatal("optional source missing should not be fatal")
	}
	issues := tr.DegradationIssues(check)
	if !slices.Contains(issues, domain.IssueSourceMissing+":optional_feed") {
		t.Errorf("missing degradation issue: %v", issues)
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	prober := &fakeProber{summaries: map[string]*warehouse.Summary{
		"events": {RowCount: 100, ContentHash: "abc"},
	}}
	tr := newTracker(prober, nil)
	unit := &fakeUnit{name: "daily", sources: []string{"events"}}

	first := tr.Check(context.Background(), unit, domain.SingleDay("2024-06-14"))
	prober.summaries["events"] = &warehouse.Summary{RowCount: 101, ContentHash: "abc"}
	second := tr.Check(context.Background(), unit, domain.SingleDay("2024-06-14"))

	if first.Fingerprints["events"] == second.Fingerprints["events"] {
		t.Error("row count change did not change the fingerprint")
	}
}
