package fallback

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dnguyenv/conductor/internal/core/domain"
)

// EventKind distinguishes the audited conditions.
type EventKind string

const (
	// EventFallbackUsed records a resolution served by a non-primary source.
	EventFallbackUsed EventKind = "fallback_used"

	// EventSourceMissing records a chain exhausted with no data.
	EventSourceMissing EventKind = "source_missing"
)

// Event is the auditable record emitted when fallback behavior kicks in.
type Event struct {
	ID        string                `json:"id"`
	Kind      EventKind             `json:"kind"`
	Dataset   string                `json:"dataset"`
	Unit      string                `json:"unit,omitempty"`
	Date      domain.Date           `json:"date,omitempty"`
	Source    string                `json:"source,omitempty"`
	Attempted []string              `json:"attempted,omitempty"`
	Policy    domain.TerminalPolicy `json:"policy,omitempty"`
	Impact    string                `json:"impact,omitempty"`
	At        time.Time             `json:"at"`
}

func newEvent(kind EventKind, dataset string) Event {
	return Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		Dataset: dataset,
		At:      time.Now().UTC(),
	}
}

// Emitter publishes audit events. The redis infra package provides the
// durable implementation; LogEmitter is the storage-less default.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// LogEmitter writes audit events to the structured log.
type LogEmitter struct{}

func (LogEmitter) Emit(ctx context.Context, ev Event) error {
	slog.Warn("fallback audit event",
		"kind", string(ev.Kind),
		"dataset", ev.Dataset,
		"unit", ev.Unit,
		"date", ev.Date,
		"source", ev.Source,
		"policy", string(ev.Policy),
		"impact", ev.Impact,
	)
	return nil
}
