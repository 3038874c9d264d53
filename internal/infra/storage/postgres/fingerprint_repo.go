package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

// FingerprintRepo implements storage.FingerprintRepository on PostgreSQL.
type FingerprintRepo struct {
	db *DB
}

func NewFingerprintRepo(db *DB) *FingerprintRepo {
	return &FingerprintRepo{db: db}
}

func (r *FingerprintRepo) Get(ctx context.Context, unit string, date domain.Date) (map[string]string, error) {
	var raw []byte
	err := r.db.GetContext(ctx, &raw, `
		SELECT fingerprints FROM output_fingerprints
		WHERE unit_name = $1 AND output_date = $2`,
		unit, date.Time())
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load fingerprints: %w", err)
	}

	out := make(map[string]string)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode fingerprints: %w", err)
	}
	return out, nil
}

func (r *FingerprintRepo) Put(ctx context.Context, unit string, date domain.Date, fingerprints map[string]string) error {
	raw, err := json.Marshal(fingerprints)
	if err != nil {
		return fmt.Errorf("failed to encode fingerprints: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO output_fingerprints (unit_name, output_date, fingerprints, recorded_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (unit_name, output_date) DO UPDATE SET
			fingerprints = EXCLUDED.fingerprints,
			recorded_at = now()`,
		unit, date.Time(), raw)
	if err != nil {
		return fmt.Errorf("failed to save fingerprints: %w", err)
	}
	return nil
}
