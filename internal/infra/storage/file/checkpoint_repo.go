// Package file implements checkpoint persistence on the local
// filesystem, one JSON document per (job, range) key. Writes go through
// a temporary file and an atomic rename so a crash mid-write leaves
// either the previous record or the new one, never a torn document.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

// CheckpointRepo stores one JSON file per checkpoint key under Dir.
type CheckpointRepo struct {
	dir string
	log *slog.Logger
}

// NewCheckpointRepo creates the directory if needed.
func NewCheckpointRepo(dir string) (*CheckpointRepo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	return &CheckpointRepo{dir: dir, log: slog.Default()}, nil
}

// persistedCheckpoint is the on-disk layout: the ledger plus the derived
// stats block, so operators can read progress with plain cat.
type persistedCheckpoint struct {
	domain.Checkpoint
	Stats domain.CheckpointStats `json:"stats"`
}

func (r *CheckpointRepo) path(key domain.CheckpointKey) string {
	name := fmt.Sprintf("%s_%s_%s.json", sanitize(key.JobName), key.Range.Start, key.Range.End)
	return filepath.Join(r.dir, name)
}

func sanitize(name string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		default:
			return '_'
		}
	}, name)
}

// Load reads and validates the record. An unreadable, unparsable, or
// invariant-violating record is discarded: the caller gets (nil, nil)
// and starts from a fresh ledger rather than an error.
func (r *CheckpointRepo) Load(ctx context.Context, key domain.CheckpointKey) (*domain.Checkpoint, error) {
	data, err := os.ReadFile(r.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var rec persistedCheckpoint
	if err := json.Unmarshal(data, &rec); err != nil {
		r.log.Warn("discarding corrupt checkpoint record",
			"job", key.JobName, "range", key.Range.String(), "error", err)
		return nil, nil
	}
	if err := rec.Checkpoint.Validate(); err != nil {
		r.log.Warn("discarding invalid checkpoint record",
			"job", key.JobName, "range", key.Range.String(), "error", err)
		return nil, nil
	}
	cp := rec.Checkpoint
	return &cp, nil
}

// Save writes the record via temp-file-then-rename.
func (r *CheckpointRepo) Save(ctx context.Context, cp *domain.Checkpoint) error {
	rec := persistedCheckpoint{Checkpoint: *cp, Stats: cp.Stats()}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	final := r.path(cp.Key())
	tmp, err := os.CreateTemp(r.dir, filepath.Base(final)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish checkpoint: %w", err)
	}
	return nil
}

// Delete removes the record; a missing record is not an error.
func (r *CheckpointRepo) Delete(ctx context.Context, key domain.CheckpointKey) error {
	err := os.Remove(r.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
