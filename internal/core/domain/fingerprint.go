package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SourceFingerprint summarizes one upstream source's content for a date
// range: row count, last-updated time, and an optional warehouse-side
// content hash. Recomputed on every dependency check; persisted only as
// part of a unit's successful-output record.
type SourceFingerprint struct {
	Source      string    `json:"source"`
	RowCount    int64     `json:"row_count"`
	LastUpdated time.Time `json:"last_updated"`
	ContentHash string    `json:"content_hash,omitempty"`
}

// Hash collapses the fingerprint into a short stable digest so "nothing
// changed" detection never needs a full data comparison.
func (f SourceFingerprint) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%s", f.Source, f.RowCount, f.LastUpdated.UTC().Unix(), f.ContentHash)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// DependencyCheck is the result of probing a unit's upstream sources.
type DependencyCheck struct {
	AllRequiredPresent bool
	Missing            []string
	Stale              []string
	Fingerprints       map[string]string // source name -> fingerprint hash
}
