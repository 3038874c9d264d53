package domain

import (
	"strings"
	"time"
)

// Tier is a coarse trust label for an output row based on which
// sources produced it.
type Tier string

const (
	TierGold     Tier = "gold"
	TierSilver   Tier = "silver"
	TierBronze   Tier = "bronze"
	TierPoor     Tier = "poor"
	TierUnusable Tier = "unusable"
)

// TierForScore maps a numeric quality score onto a tier band.
func TierForScore(score float64) Tier {
	switch {
	case score >= 0.9:
		return TierGold
	case score >= 0.75:
		return TierSilver
	case score >= 0.5:
		return TierBronze
	case score > 0:
		return TierPoor
	default:
		return TierUnusable
	}
}

// Well-known quality issue tags.
const (
	IssueBackupSourceUsed = "backup_source_used"
	IssueReconstructed    = "reconstructed"
	IssueSourceMissing    = "source_missing"
	IssueStaleSource      = "stale_source"
	IssuePlaceholder      = "placeholder_row"
	IssueDegradedInput    = "degraded_input"
)

// QualityRecord describes the trustworthiness of one unit invocation's
// output. Immutable after creation; downstream readers branch on Tier.
type QualityRecord struct {
	Tier        Tier
	Score       float64
	Issues      []string
	SourcesUsed []string
	RecordedAt  time.Time
}

// NewQualityRecord derives the tier from the score and stamps the record.
func NewQualityRecord(score float64, issues, sources []string) QualityRecord {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return QualityRecord{
		Tier:        TierForScore(score),
		Score:       score,
		Issues:      issues,
		SourcesUsed: sources,
		RecordedAt:  time.Now().UTC(),
	}
}

// WithPenalty returns a copy with the score reduced and an issue tag
// appended. The tier is re-derived from the penalized score.
func (q QualityRecord) WithPenalty(penalty float64, issue string) QualityRecord {
	score := q.Score - penalty
	if score < 0 {
		score = 0
	}
	issues := append(append([]string(nil), q.Issues...), issue)
	return QualityRecord{
		Tier:        TierForScore(score),
		Score:       score,
		Issues:      issues,
		SourcesUsed: q.SourcesUsed,
		RecordedAt:  q.RecordedAt,
	}
}

// Columns renders the record as the standard output-schema fragment
// appended to every derived row.
func (q QualityRecord) Columns() map[string]any {
	return map[string]any{
		"data_quality_tier":   string(q.Tier),
		"data_quality_score":  q.Score,
		"data_quality_issues": strings.Join(q.Issues, ","),
		"data_sources_used":   strings.Join(q.SourcesUsed, ","),
	}
}

// Usable reports whether downstream consumers should trust the row at all.
func (q QualityRecord) Usable() bool {
	return q.Tier != TierUnusable
}
