package fingerprint

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dnguyenv/conductor/internal/core/domain"
	"github.com/dnguyenv/conductor/internal/infra/warehouse"
)

type fakeFingerprintRepo struct {
	records map[string]map[string]string
	getErr  error
	putErr  error
}

func newFakeFingerprintRepo() *fakeFingerprintRepo {
	return &fakeFingerprintRepo{records: make(map[string]map[string]string)}
}

func (r *fakeFingerprintRepo) Get(ctx context.Context, unit string, date domain.Date) (map[string]string, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.records[unit+":"+string(date)], nil
}

func (r *fakeFingerprintRepo) Put(ctx context.Context, unit string, date domain.Date, fps map[string]string) error {
	if r.putErr != nil {
		return r.putErr
	}
	r.records[unit+":"+string(date)] = fps
	return nil
}

func gateFixture(summaries map[string]*warehouse.Summary) (*Gate, *fakeFingerprintRepo) {
	prober := &fakeProber{summaries: summaries}
	repo := newFakeFingerprintRepo()
	return NewGate(newTracker(prober, nil), repo), repo
}

func TestShouldSkipFirstRunProcesses(t *testing.T) {
	g, _ := gateFixture(map[string]*warehouse.Summary{
		"events": {RowCount: 100, ContentHash: "abc"},
	})
	unit := &fakeUnit{name: "daily", sources: []string{"events"}}

	skip, reason := g.ShouldSkip(context.Background(), unit, "2024-06-14", false)
	if skip {
		t.Fatalf("skipped with no prior output: %s", reason)
	}
}

func TestShouldSkipUnchangedSource(t *testing.T) {
	g, _ := gateFixture(map[string]*warehouse.Summary{
		"events": {RowCount: 100, ContentHash: "abc"},
	})
	unit := &fakeUnit{name: "daily", sources: []string{"events"}}

	// Record the current state as the last successful run.
	check := g.tracker.Check(context.Background(), unit, domain.SingleDay("2024-06-14"))
	g.RecordSuccess(context.Background(), "daily", "2024-06-14", check.Fingerprints)

	skip, reason := g.ShouldSkip(context.Background(), unit, "2024-06-14", false)
	if !skip {
		t.Fatalf("unchanged source not skipped: %s", reason)
	}
	if !strings.Contains(reason, "events") {
		t.Errorf("reason does not name the unchanged source: %s", reason)
	}
}

func TestShouldSkipChangedSourceProcesses(t *testing.T) {
	summaries := map[string]*warehouse.Summary{
		"events": {RowCount: 100, ContentHash: "abc"},
	}
	g, _ := gateFixture(summaries)
	unit := &fakeUnit{name: "daily", sources: []string{"events"}}

	check := g.tracker.Check(context.Background(), unit, domain.SingleDay("2024-06-14"))
	g.RecordSuccess(context.Background(), "daily", "2024-06-14", check.Fingerprints)

	summaries["events"] = &warehouse.Summary{RowCount: 150, ContentHash: "def"}
	skip, _ := g.ShouldSkip(context.Background(), unit, "2024-06-14", false)
	if skip {
		t.Error("changed source was skipped")
	}
}

func TestShouldSkipLenientIgnoresSecondarySources(t *testing.T) {
	summaries := map[string]*warehouse.Summary{
		"events":   {RowCount: 100, ContentHash: "abc"},
		"entities": {RowCount: 42, ContentHash: "xyz"},
	}
	g, _ := gateFixture(summaries)
	unit := &fakeUnit{name: "daily", sources: []string{"events", "entities"}}

	check := g.tracker.Check(context.Background(), unit, domain.SingleDay("2024-06-14"))
	g.RecordSuccess(context.Background(), "daily", "2024-06-14", check.Fingerprints)

	// Only the secondary source changes.
	summaries["entities"] = &warehouse.Summary{RowCount: 50, ContentHash: "changed"}

	if skip, reason := g.ShouldSkip(context.Background(), unit, "2024-06-14", false); !skip {
		t.Errorf("lenient mode considered a secondary source: %s", reason)
	}
	if skip, _ := g.ShouldSkip(context.Background(), unit, "2024-06-14", true); skip {
		t.Error("strict mode ignored a changed secondary source")
	}
}

func TestShouldSkipFailsOpenOnHistoryError(t *testing.T) {
	g, repo := gateFixture(map[string]*warehouse.Summary{
		"events": {RowCount: 100},
	})
	repo.getErr = errors.New("db down")

	unit := &fakeUnit{name: "daily", sources: []string{"events"}}
	if skip, _ := g.ShouldSkip(context.Background(), unit, "2024-06-14", false); skip {
		t.Error("history lookup failure must fail open")
	}
}

func TestShouldSkipFailsOpenOnProbeFailure(t *testing.T) {
	prober := &fakeProber{errs: map[string]error{"events": errors.New("timeout")}}
	repo := newFakeFingerprintRepo()
	repo.records["daily:2024-06-14"] = map[string]string{"events": "deadbeef"}
	g := NewGate(newTracker(prober, nil), repo)

	unit := &fakeUnit{name: "daily", sources: []string{"events"}}
	if skip, _ := g.ShouldSkip(context.Background(), unit, "2024-06-14", false); skip {
		t.Error("probe failure must fail open")
	}
}

func TestRecordSuccessToleratesRepoFailure(t *testing.T) {
	g, repo := gateFixture(map[string]*warehouse.Summary{
		"events": {RowCount: 100},
	})
	repo.putErr = errors.New("disk full")

	// Must not panic or propagate; the cost is a future skip opportunity.
	g.RecordSuccess(context.Background(), "daily", "2024-06-14", map[string]string{"events": "x"})
}
