// Package quality composes per-source quality grades into the standard
// column fragment appended to every derived output row.
package quality

import (
	"sort"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

// Grade is one input's contribution to the output's quality: the static
// (tier, score) of the source that served it plus the issues picked up
// along the way.
type Grade struct {
	Source string
	Score  float64
	Issues []string
}

// Compose merges the grades of every input consumed by a unit
// invocation into one QualityRecord. The output is only as trustworthy
// as its weakest input, so the composite score is the minimum; issues
// are deduplicated and the source list is sorted for stable columns.
func Compose(grades ...Grade) domain.QualityRecord {
	if len(grades) == 0 {
		return domain.NewQualityRecord(0, []string{domain.IssueSourceMissing}, nil)
	}

	score := grades[0].Score
	issueSet := make(map[string]struct{})
	sources := make([]string, 0, len(grades))

	for _, g := range grades {
		if g.Score < score {
			score = g.Score
		}
		for _, issue := range g.Issues {
			issueSet[issue] = struct{}{}
		}
		if g.Source != "" {
			sources = append(sources, g.Source)
		}
	}

	issues := make([]string, 0, len(issueSet))
	for issue := range issueSet {
		issues = append(issues, issue)
	}
	sort.Strings(issues)
	sort.Strings(sources)

	return domain.NewQualityRecord(score, issues, sources)
}

// Columns is the pure composition used by units that already know their
// tier, score, and issues: it builds the record and renders the
// standard schema fragment in one step.
func Columns(score float64, issues, sources []string) map[string]any {
	return domain.NewQualityRecord(score, issues, sources).Columns()
}

// PlaceholderColumns renders the fragment for a synthesized
// unusable-tier row emitted under the placeholder terminal policy.
func PlaceholderColumns(dataset string) map[string]any {
	rec := domain.NewQualityRecord(0, []string{domain.IssuePlaceholder, domain.IssueSourceMissing}, nil)
	cols := rec.Columns()
	cols["placeholder_for"] = dataset
	return cols
}
