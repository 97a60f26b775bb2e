// Package events publishes domain events for downstream consumers such as
// notification workers. Publishing is best-effort: a failure is logged and
// counted, never returned to the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/picadito/internal/metrics"
)

// Routing keys.
const (
	RKQueueJoined        = "queue.joined"
	RKQueueLeft          = "queue.left"
	RKMatchCreated       = "match.created"
	RKMatchFormed        = "match.formed"
	RKMatchPlayerJoined  = "match.player_joined"
	RKMatchStatusChanged = "match.status_changed"
	RKMatchDeleted       = "match.deleted"
)

// QueueChanged is published when a user joins or leaves the queue.
type QueueChanged struct {
	EntryID string `json:"entry_id"`
	UserID  string `json:"user_id"`
	Format  string `json:"format,omitempty"`
	At      int64  `json:"at"` // unix seconds
}

// MatchChanged is published for every match lifecycle event.
type MatchChanged struct {
	MatchID string   `json:"match_id"`
	HostID  string   `json:"host_id,omitempty"`
	UserID  string   `json:"user_id,omitempty"`
	Players []string `json:"players,omitempty"`
	Status  string   `json:"status,omitempty"`
	At      int64    `json:"at"` // unix seconds
}

// Publisher sends one JSON-encoded event under a routing key.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
	Close() error
}

// LogPublisher writes events to the log instead of a broker.
type LogPublisher struct{}

func (LogPublisher) PublishJSON(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", key, err)
	}
	slog.Debug("Event", "key", key, "payload", string(b))
	return nil
}

func (LogPublisher) Close() error { return nil }

// Emitter publishes events without letting failures escape.
type Emitter struct {
	pub     Publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewEmitter wraps pub. A nil pub logs events only.
func NewEmitter(pub Publisher, m *metrics.Metrics) *Emitter {
	if pub == nil {
		pub = LogPublisher{}
	}
	return &Emitter{pub: pub, metrics: m, now: time.Now}
}

// Emit publishes v under key, logging and counting any failure.
// A nil Emitter drops the event.
func (e *Emitter) Emit(ctx context.Context, key string, v any) {
	if e == nil {
		return
	}
	if err := e.pub.PublishJSON(ctx, key, v); err != nil {
		e.metrics.EventPublishFailed()
		slog.Warn("Failed to publish event", "key", key, "error", err)
	}
}

// Now returns the emission timestamp in unix seconds.
func (e *Emitter) Now() int64 {
	if e == nil {
		return time.Now().Unix()
	}
	return e.now().Unix()
}
