package memory

import (
	"context"
	"sync"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

// MemoryStorage backs the repositories for tests and storage-less runs.
type MemoryStorage struct {
	mu           sync.RWMutex
	checkpoints  map[string]*domain.Checkpoint
	fingerprints map[string]map[string]string
	workload     map[string]int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		checkpoints:  make(map[string]*domain.Checkpoint),
		fingerprints: make(map[string]map[string]string),
		workload:     make(map[string]int64),
	}
}

// -----------------------------------------------------------------------------
// Checkpoint Repository
// -----------------------------------------------------------------------------

type CheckpointRepo struct {
	store *MemoryStorage
}

func NewCheckpointRepo(store *MemoryStorage) *CheckpointRepo {
	return &CheckpointRepo{store: store}
}

func (r *CheckpointRepo) Load(ctx context.Context, key domain.CheckpointKey) (*domain.Checkpoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	cp, ok := r.store.checkpoints[key.String()]
	if !ok {
		return nil, nil
	}
	// Return a deep copy so callers can mutate freely.
	return cloneCheckpoint(cp), nil
}

func (r *CheckpointRepo) Save(ctx context.Context, cp *domain.Checkpoint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.checkpoints[cp.Key().String()] = cloneCheckpoint(cp)
	return nil
}

func (r *CheckpointRepo) Delete(ctx context.Context, key domain.CheckpointKey) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.checkpoints, key.String())
	return nil
}

func cloneCheckpoint(cp *domain.Checkpoint) *domain.Checkpoint {
	out := *cp
	out.Successful = append([]domain.Date(nil), cp.Successful...)
	out.Failed = append([]domain.Date(nil), cp.Failed...)
	out.Skipped = append([]domain.Date(nil), cp.Skipped...)
	out.FailureReasons = make(map[domain.Date]string, len(cp.FailureReasons))
	for d, msg := range cp.FailureReasons {
		out.FailureReasons[d] = msg
	}
	return &out
}

// -----------------------------------------------------------------------------
// Fingerprint Repository
// -----------------------------------------------------------------------------

type FingerprintRepo struct {
	store *MemoryStorage
}

func NewFingerprintRepo(store *MemoryStorage) *FingerprintRepo {
	return &FingerprintRepo{store: store}
}

func recordKey(unit string, date domain.Date) string {
	return unit + ":" + string(date)
}

func (r *FingerprintRepo) Get(ctx context.Context, unit string, date domain.Date) (map[string]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	fps, ok := r.store.fingerprints[recordKey(unit, date)]
	if !ok {
		return nil, nil
	}
	out := make(map[string]string, len(fps))
	for k, v := range fps {
		out[k] = v
	}
	return out, nil
}

func (r *FingerprintRepo) Put(ctx context.Context, unit string, date domain.Date, fingerprints map[string]string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := make(map[string]string, len(fingerprints))
	for k, v := range fingerprints {
		cp[k] = v
	}
	r.store.fingerprints[recordKey(unit, date)] = cp
	return nil
}

// -----------------------------------------------------------------------------
// Workload Repository
// -----------------------------------------------------------------------------

type WorkloadRepo struct {
	store *MemoryStorage
}

func NewWorkloadRepo(store *MemoryStorage) *WorkloadRepo {
	return &WorkloadRepo{store: store}
}

// SetScheduled seeds the scheduled-work count for (unit, date).
func (r *WorkloadRepo) SetScheduled(unit string, date domain.Date, count int64) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.workload[recordKey(unit, date)] = count
}

func (r *WorkloadRepo) CountScheduled(ctx context.Context, unit string, date domain.Date) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.workload[recordKey(unit, date)], nil
}
