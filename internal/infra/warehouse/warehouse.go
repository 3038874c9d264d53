// Package warehouse probes upstream tables for the summaries that drive
// dependency checks: row count, last-updated time, and an optional
// content hash per (table, date range). The warehouse itself is an
// opaque collaborator; this package only asks it cheap questions.
package warehouse

import (
	"context"
	"time"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

// Summary is one upstream table's answer for a date range.
type Summary struct {
	RowCount    int64
	LastUpdated time.Time
	ContentHash string
}

// Prober answers summary queries against the warehouse.
type Prober interface {
	Summarize(ctx context.Context, table string, r domain.DateRange) (*Summary, error)
}

// TableSpec maps a logical source name onto its physical table.
type TableSpec struct {
	Name       string `yaml:"name"`
	Table      string `yaml:"table"`
	DateColumn string `yaml:"date_column"`
	// HashColumn, when set, is aggregated into the content hash; leave
	// empty for tables where a count + max(updated_at) summary is enough.
	HashColumn    string `yaml:"hash_column"`
	UpdatedColumn string `yaml:"updated_column"`
}
