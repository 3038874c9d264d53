package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dnguyenv/conductor/internal/pipeline/fallback"
)

const (
	auditStream    = "conductor:fallback_events"
	auditMaxLen    = 10000
	auditReadBatch = 100
)

// EventStream publishes fallback-usage and missing-source audit events
// to a capped Redis stream for offline review.
type EventStream struct {
	rdb *redis.Client
}

// NewEventStream builds an audit publisher from a shared client.
func NewEventStream(client *Client) *EventStream {
	return &EventStream{rdb: client.rdb}
}

// Emit appends the event to the stream. Implements fallback.Emitter.
func (s *EventStream) Emit(ctx context.Context, ev fallback.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: auditStream,
		MaxLen: auditMaxLen,
		Approx: true,
		Values: map[string]any{
			"event_id": ev.ID,
			"dataset":  ev.Dataset,
			"kind":     string(ev.Kind),
			"payload":  payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

// Recent returns up to n most recent audit events, newest first.
func (s *EventStream) Recent(ctx context.Context, n int64) ([]fallback.Event, error) {
	if n <= 0 {
		n = auditReadBatch
	}
	msgs, err := s.rdb.XRevRangeN(ctx, auditStream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit stream: %w", err)
	}

	out := make([]fallback.Event, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values["payload"].(string)
		if !ok {
			continue
		}
		var ev fallback.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Trim drops events older than the retention window.
func (s *EventStream) Trim(ctx context.Context, retention time.Duration) error {
	cutoff := fmt.Sprintf("%d-0", time.Now().Add(-retention).UnixMilli())
	return s.rdb.XTrimMinID(ctx, auditStream, cutoff).Err()
}
