// Package storage defines the persistence interfaces for checkpoints and
// fingerprint history. Implementations live in the postgres, file, and
// memory subpackages; the orchestration layer only sees these contracts.
package storage

import (
	"context"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

// CheckpointRepository persists ranged-job progress ledgers.
type CheckpointRepository interface {
	// Load retrieves the ledger for a key. Returns (nil, nil) when no
	// ledger exists. A corrupt or schema-invalid record is discarded by
	// the implementation and reported as not found, never as an error.
	Load(ctx context.Context, key domain.CheckpointKey) (*domain.Checkpoint, error)

	// Save durably writes the ledger. Implementations must guarantee
	// that a reader never observes a partially written record.
	Save(ctx context.Context, cp *domain.Checkpoint) error

	// Delete removes the ledger for a key. Deleting a missing ledger is
	// not an error.
	Delete(ctx context.Context, key domain.CheckpointKey) error
}

// FingerprintRepository persists the source fingerprints recorded with a
// unit's most recent successful output for a date.
type FingerprintRepository interface {
	// Get returns the recorded fingerprints, or nil when the unit has
	// never successfully produced output for the date.
	Get(ctx context.Context, unit string, date domain.Date) (map[string]string, error)

	// Put overwrites the recorded fingerprints for (unit, date).
	Put(ctx context.Context, unit string, date domain.Date, fingerprints map[string]string) error
}

// WorkloadRepository answers the early-exit gate's "is any work
// scheduled for this unit and date" probe.
type WorkloadRepository interface {
	CountScheduled(ctx context.Context, unit string, date domain.Date) (int64, error)
}
