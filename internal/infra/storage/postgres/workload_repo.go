package postgres

import (
	"context"
	"fmt"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

// WorkloadRepo counts scheduled work items for the early-exit gate.
// The schedule table is part of the operator's warehouse schema, so its
// name and columns come from configuration.
type WorkloadRepo struct {
	db      *DB
	table   string
	unitCol string
	dateCol string
}

func NewWorkloadRepo(db *DB, table, unitCol, dateCol string) *WorkloadRepo {
	if table == "" {
		table = "scheduled_work"
	}
	if unitCol == "" {
		unitCol = "unit_name"
	}
	if dateCol == "" {
		dateCol = "work_date"
	}
	return &WorkloadRepo{db: db, table: table, unitCol: unitCol, dateCol: dateCol}
}

func (r *WorkloadRepo) CountScheduled(ctx context.Context, unit string, date domain.Date) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1 AND %s = $2`,
		r.table, r.unitCol, r.dateCol)

	var count int64
	if err := r.db.GetContext(ctx, &count, query, unit, date.Time()); err != nil {
		return 0, fmt.Errorf("failed to count scheduled work: %w", err)
	}
	return count, nil
}
