package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-retry"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

// PostgresProber answers summary queries against a PostgreSQL warehouse.
// Transient probe errors are retried with capped exponential backoff;
// callers still treat a final error as "unknown" and fail open.
type PostgresProber struct {
	db         *sqlx.DB
	tables     map[string]TableSpec
	maxRetries uint64
}

// NewPostgresProber indexes the table specs by source name.
func NewPostgresProber(db *sqlx.DB, specs []TableSpec) *PostgresProber {
	tables := make(map[string]TableSpec, len(specs))
	for _, s := range specs {
		tables[s.Name] = s
	}
	return &PostgresProber{db: db, tables: tables, maxRetries: 2}
}

type summaryRow struct {
	RowCount    int64          `db:"row_count"`
	LastUpdated sql.NullTime   `db:"last_updated"`
	ContentHash sql.NullString `db:"content_hash"`
}

// Summarize returns {row_count, last_updated, content_hash} for the
// source's table over the inclusive date range.
func (p *PostgresProber) Summarize(ctx context.Context, source string, r domain.DateRange) (*Summary, error) {
	spec, ok := p.tables[source]
	if !ok {
		return nil, fmt.Errorf("no table configured for source %s", source)
	}

	updatedCol := spec.UpdatedColumn
	if updatedCol == "" {
		updatedCol = "updated_at"
	}

	var query string
	if spec.HashColumn != "" {
		query = fmt.Sprintf(`
			SELECT COUNT(*) AS row_count,
			       MAX(%s) AS last_updated,
			       md5(COALESCE(string_agg(%s::text, ',' ORDER BY %s), '')) AS content_hash
			FROM %s
			WHERE %s >= $1 AND %s <= $2`,
			updatedCol, spec.HashColumn, spec.HashColumn,
			spec.Table, spec.DateColumn, spec.DateColumn)
	} else {
		query = fmt.Sprintf(`
			SELECT COUNT(*) AS row_count,
			       MAX(%s) AS last_updated,
			       NULL AS content_hash
			FROM %s
			WHERE %s >= $1 AND %s <= $2`,
			updatedCol, spec.Table, spec.DateColumn, spec.DateColumn)
	}

	var row summaryRow
	backoff := retry.WithMaxRetries(p.maxRetries, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := p.db.GetContext(ctx, &row, query, r.Start.Time(), r.End.Time()); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", source, err)
	}

	out := &Summary{RowCount: row.RowCount}
	if row.LastUpdated.Valid {
		out.LastUpdated = row.LastUpdated.Time
	}
	if row.ContentHash.Valid {
		out.ContentHash = row.ContentHash.String
	}
	return out, nil
}
