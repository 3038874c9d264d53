package quality

import (
	"testing"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

func TestComposeTakesMinimumScore(t *testing.T) {
	rec := Compose(
		Grade{Source: "events", Score: 1.0},
		Grade{Source: "backup_feed", Score: 0.8, Issues: []string{domain.IssueBackupSourceUsed}},
		Grade{Source: "entities", Score: 0.95},
	)

	if rec.Score != 0.8 {
		t.Errorf("composite score = %v, want the minimum 0.8", rec.Score)
	}
	if rec.Tier != domain.TierSilver {
		t.Errorf("tier = %s, want silver", rec.Tier)
	}
}

func TestComposeDedupesAndSorts(t *testing.T) {
	rec := Compose(
		Grade{Source: "b_feed", Score: 0.9, Issues: []string{domain.IssueStaleSource, domain.IssueBackupSourceUsed}},
		Grade{Source: "a_feed", Score: 0.9, Issues: []string{domain.IssueBackupSourceUsed}},
	)

	wantIssues := []string{domain.IssueBackupSourceUsed, domain.IssueStaleSource}
	if len(rec.Issues) != len(wantIssues) {
		t.Fatalf("issues = %v, want %v", rec.Issues, wantIssues)
	}
	for i, issue := range wantIssues {
		if rec.Issues[i] != issue {
			t.Errorf("issues[%d] = %s, want %s", i, rec.Issues[i], issue)
		}
	}
	if rec.SourcesUsed[0] != "a_feed" || rec.SourcesUsed[1] != "b_feed" {
		t.Errorf("sources not sorted: %v", rec.SourcesUsed)
	}
}

func TestComposeEmptyIsUnusable(t *testing.T) {
	rec := Compose()

	if rec.Tier != domain.TierUnusable || rec.Usable() {
		t.Errorf("empty composition should be unusable, got tier %s", rec.Tier)
	}
	if len(rec.Issues) != 1 || rec.Issues[0] != domain.IssueSourceMissing {
		t.Errorf("issues = %v, want [%s]", rec.Issues, domain.IssueSourceMissing)
	}
}

func TestTierBands(t *testing.T) {
	cases := []struct {
		score float64
		want  domain.Tier
	}{
		{1.0, domain.TierGold},
		{0.9, domain.TierGold},
		{0.89, domain.TierSilver},
		{0.75, domain.TierSilver},
		{0.5, domain.TierBronze},
		{0.1, domain.TierPoor},
		{0, domain.TierUnusable},
	}
	for _, tc := range cases {
		if got := domain.TierForScore(tc.score); got != tc.want {
			t.Errorf("TierForScore(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestColumnsFragment(t *testing.T) {
	cols := Columns(0.95, []string{domain.IssueDegradedInput}, []string{"events", "entities"})

	if cols["data_quality_tier"] != "gold" {
		t.Errorf("tier column = %v", cols["data_quality_tier"])
	}
	if cols["data_quality_score"] != 0.95 {
		t.Errorf("score column = %v", cols["data_quality_score"])
	}
	if cols["data_quality_issues"] != domain.IssueDegradedInput {
		t.Errorf("issues column = %v", cols["data_quality_issues"])
	}
	if cols["data_sources_used"] != "events,entities" {
		t.Errorf("sources column = %v", cols["data_sources_used"])
	}
}

func TestPlaceholderColumns(t *testing.T) {
	cols := PlaceholderColumns("daily_rollup")

	if cols["data_quality_tier"] != string(domain.TierUnusable) {
		t.Errorf("placeholder tier = %v", cols["data_quality_tier"])
	}
	if cols["placeholder_for"] != "daily_rollup" {
		t.Errorf("placeholder_for = %v", cols["placeholder_for"])
	}
}

func TestWithPenaltyClampsAndRetiers(t *testing.T) {
	rec := domain.NewQualityRecord(0.92, nil, []string{"events"})
	degraded := rec.WithPenalty(0.1, domain.IssueDegradedInput)

	if degraded.Tier != domain.TierSilver {
		t.Errorf("penalized tier = %s, want silver", degraded.Tier)
	}
	if rec.Tier != domain.TierGold {
		t.Error("penalty mutated the original record")
	}

	floor := rec.WithPenalty(5, domain.IssueDegradedInput)
	if floor.Score != 0 || floor.Tier != domain.TierUnusable {
		t.Errorf("score not clamped at zero: %+v", floor)
	}
}
