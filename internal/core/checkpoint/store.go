// Package checkpoint implements the durable, lock-safe, resumable
// progress ledger for ranged batch jobs. A killed or interrupted
// backfill always leaves a checkpoint reflecting exactly the work
// completed so far.
package checkpoint

import (
	"context"
	"fmt"

	"github.com/dnguyenv/conductor/internal/core/domain"
	"github.com/dnguyenv/conductor/internal/infra/storage"
	"github.com/dnguyenv/conductor/internal/pipeline/metrics"
)

// Store coordinates concurrent checkpoint mutations. Every mutation
// acquires the exclusive lock for the checkpoint's storage key before
// the read-modify-write; the repository guarantees atomic publication.
type Store struct {
	repo  storage.CheckpointRepository
	locks Locker
}

// NewStore wires a repository with a keyed locker.
func NewStore(repo storage.CheckpointRepository, locks Locker) *Store {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &Store{repo: repo, locks: locks}
}

// Exists reports whether a ledger has been created for the key.
func (s *Store) Exists(ctx context.Context, key domain.CheckpointKey) (bool, error) {
	unlock, err := s.locks.RLock(ctx, key.String())
	if err != nil {
		return false, err
	}
	defer unlock()

	cp, err := s.repo.Load(ctx, key)
	if err != nil {
		return false, err
	}
	return cp != nil, nil
}

// ResumeDate returns the next date to process for the key: the day
// after the last successful date bounded to the range, the range start
// when no progress exists, or ok=false when the range is complete.
func (s *Store) ResumeDate(ctx context.Context, key domain.CheckpointKey) (domain.Date, bool, error) {
	unlock, err := s.locks.RLock(ctx, key.String())
	if err != nil {
		return "", false, err
	}
	defer unlock()

	cp, err := s.repo.Load(ctx, key)
	if err != nil {
		return "", false, err
	}
	if cp == nil {
		return key.Range.Start, true, nil
	}
	d, ok := cp.ResumeDate()
	return d, ok, nil
}

// mutate runs fn under the key's exclusive lock against the loaded (or
// freshly created) ledger, then saves it.
func (s *Store) mutate(ctx context.Context, key domain.CheckpointKey, fn func(*domain.Checkpoint)) error {
	unlock, err := s.locks.Lock(ctx, key.String())
	if err != nil {
		return err
	}
	defer unlock()

	cp, err := s.repo.Load(ctx, key)
	if err != nil {
		return err
	}
	if cp == nil {
		cp = domain.NewCheckpoint(key)
	}

	fn(cp)

	if err := s.repo.Save(ctx, cp); err != nil {
		return fmt.Errorf("failed to persist checkpoint %s: %w", key, err)
	}

	stats := cp.Stats()
	metrics.CheckpointProgress.WithLabelValues(key.JobName).Set(float64(stats.Processed))
	return nil
}

// MarkComplete records a successful date. Idempotent; a retry-success
// removes the date from the failed set.
func (s *Store) MarkComplete(ctx context.Context, key domain.CheckpointKey, date domain.Date) error {
	return s.mutate(ctx, key, func(cp *domain.Checkpoint) {
		cp.MarkComplete(date)
	})
}

// MarkFailed records a failed date with its error.
func (s *Store) MarkFailed(ctx context.Context, key domain.CheckpointKey, date domain.Date, cause error) error {
	reason := "unknown failure"
	if cause != nil {
		reason = cause.Error()
	}
	return s.mutate(ctx, key, func(cp *domain.Checkpoint) {
		cp.MarkFailed(date, reason)
	})
}

// MarkSkipped records a deliberately skipped date.
func (s *Store) MarkSkipped(ctx context.Context, key domain.CheckpointKey, date domain.Date) error {
	return s.mutate(ctx, key, func(cp *domain.Checkpoint) {
		cp.MarkSkipped(date)
	})
}

// Clear deletes the ledger. The only way a ledger is ever removed.
func (s *Store) Clear(ctx context.Context, key domain.CheckpointKey) error {
	unlock, err := s.locks.Lock(ctx, key.String())
	if err != nil {
		return err
	}
	defer unlock()

	return s.repo.Delete(ctx, key)
}

// Summary returns a copy of the ledger with derived stats. Returns
// ErrCheckpointNotFound when no ledger exists.
func (s *Store) Summary(ctx context.Context, key domain.CheckpointKey) (*domain.Checkpoint, domain.CheckpointStats, error) {
	unlock, err := s.locks.RLock(ctx, key.String())
	if err != nil {
		return nil, domain.CheckpointStats{}, err
	}
	defer unlock()

	cp, err := s.repo.Load(ctx, key)
	if err != nil {
		return nil, domain.CheckpointStats{}, err
	}
	if cp == nil {
		return nil, domain.CheckpointStats{}, domain.ErrCheckpointNotFound
	}
	return cp, cp.Stats(), nil
}
