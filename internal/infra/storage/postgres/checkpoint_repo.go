package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

// CheckpointRepo implements storage.CheckpointRepository on PostgreSQL.
type CheckpointRepo struct {
	db *DB
}

func NewCheckpointRepo(db *DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

type checkpointRow struct {
	JobName            string         `db:"job_name"`
	StartDate          time.Time      `db:"start_date"`
	EndDate            time.Time      `db:"end_date"`
	CreatedAt          time.Time      `db:"created_at"`
	LastUpdated        time.Time      `db:"last_updated"`
	LastSuccessfulDate sql.NullTime   `db:"last_successful_date"`
	SuccessfulDates    pq.StringArray `db:"successful_dates"`
	FailedDates        pq.StringArray `db:"failed_dates"`
	SkippedDates       pq.StringArray `db:"skipped_dates"`
	FailureReasons     []byte         `db:"failure_reasons"`
}

func toDates(arr pq.StringArray) ([]domain.Date, error) {
	out := make([]domain.Date, 0, len(arr))
	for _, s := range arr {
		// DATE[] scans as "2006-01-02" or a full timestamp depending on
		// driver; keep only the day part.
		if len(s) > len(domain.DateLayout) {
			s = s[:len(domain.DateLayout)]
		}
		d, err := domain.ParseDate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func fromDates(dates []domain.Date) pq.StringArray {
	out := make(pq.StringArray, 0, len(dates))
	for _, d := range dates {
		out = append(out, string(d))
	}
	return out
}

// Load retrieves the ledger for a key. A row that fails schema
// validation is deleted and reported as not found so a corrupt record
// never propagates as an error.
func (r *CheckpointRepo) Load(ctx context.Context, key domain.CheckpointKey) (*domain.Checkpoint, error) {
	var row checkpointRow
	err := r.db.GetContext(ctx, &row, `
		SELECT job_name, start_date, end_date, created_at, last_updated,
		       last_successful_date, successful_dates, failed_dates,
		       skipped_dates, failure_reasons
		FROM checkpoints
		WHERE job_name = $1 AND start_date = $2 AND end_date = $3`,
		key.JobName, key.Range.Start.Time(), key.Range.End.Time())
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	cp, err := rowToCheckpoint(row)
	if err == nil {
		err = cp.Validate()
	}
	if err != nil {
		slog.Warn("discarding invalid checkpoint row",
			"job", key.JobName, "range", key.Range.String(), "error", err)
		_ = r.Delete(ctx, key)
		return nil, nil
	}
	return cp, nil
}

func rowToCheckpoint(row checkpointRow) (*domain.Checkpoint, error) {
	successful, err := toDates(row.SuccessfulDates)
	if err != nil {
		return nil, err
	}
	failed, err := toDates(row.FailedDates)
	if err != nil {
		return nil, err
	}
	skipped, err := toDates(row.SkippedDates)
	if err != nil {
		return nil, err
	}

	reasons := make(map[domain.Date]string)
	if len(row.FailureReasons) > 0 {
		if err := json.Unmarshal(row.FailureReasons, &reasons); err != nil {
			return nil, fmt.Errorf("failed to decode failure reasons: %w", err)
		}
	}

	cp := &domain.Checkpoint{
		JobName:        row.JobName,
		StartDate:      domain.DateOf(row.StartDate),
		EndDate:        domain.DateOf(row.EndDate),
		CreatedAt:      row.CreatedAt,
		LastUpdated:    row.LastUpdated,
		Successful:     successful,
		Failed:         failed,
		Skipped:        skipped,
		FailureReasons: reasons,
	}
	if row.LastSuccessfulDate.Valid {
		cp.LastSuccessfulDate = domain.DateOf(row.LastSuccessfulDate.Time)
	}
	return cp, nil
}

// Save upserts the full ledger row.
func (r *CheckpointRepo) Save(ctx context.Context, cp *domain.Checkpoint) error {
	reasons, err := json.Marshal(cp.FailureReasons)
	if err != nil {
		return fmt.Errorf("failed to encode failure reasons: %w", err)
	}

	var lastSuccessful any
	if !cp.LastSuccessfulDate.IsZero() {
		lastSuccessful = cp.LastSuccessfulDate.Time()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO checkpoints (
			job_name, start_date, end_date, created_at, last_updated,
			last_successful_date, successful_dates, failed_dates,
			skipped_dates, failure_reasons
		) VALUES ($1, $2, $3, $4, $5, $6, $7::date[], $8::date[], $9::date[], $10)
		ON CONFLICT (job_name, start_date, end_date) DO UPDATE SET
			last_updated = EXCLUDED.last_updated,
			last_successful_date = EXCLUDED.last_successful_date,
			successful_dates = EXCLUDED.successful_dates,
			failed_dates = EXCLUDED.failed_dates,
			skipped_dates = EXCLUDED.skipped_dates,
			failure_reasons = EXCLUDED.failure_reasons`,
		cp.JobName, cp.StartDate.Time(), cp.EndDate.Time(),
		cp.CreatedAt, cp.LastUpdated, lastSuccessful,
		fromDates(cp.Successful), fromDates(cp.Failed), fromDates(cp.Skipped),
		reasons)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Delete removes the ledger row.
func (r *CheckpointRepo) Delete(ctx context.Context, key domain.CheckpointKey) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM checkpoints
		WHERE job_name = $1 AND start_date = $2 AND end_date = $3`,
		key.JobName, key.Range.Start.Time(), key.Range.End.Time())
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
