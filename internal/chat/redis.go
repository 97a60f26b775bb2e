package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/picadito/internal/models"
)

// RedisBroker fans messages out through Redis pub/sub so every server
// instance sees messages written by the others.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker connects to the Redis server at url (redis://host:port/db).
func NewRedisBroker(ctx context.Context, url string) (*RedisBroker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBroker{client: client}, nil
}

func channelName(matchID string) string {
	return "picadito:chat:" + matchID
}

// wireMessage is the JSON payload carried on the Redis channel.
type wireMessage struct {
	ID          string `json:"id"`
	MatchID     string `json:"match_id"`
	SenderID    string `json:"sender_id"`
	SenderName  string `json:"sender_name"`
	SenderPhoto string `json:"sender_photo,omitempty"`
	Text        string `json:"text"`
	SentAt      int64  `json:"sent_at"` // unix millis
	Seq         int64  `json:"seq"`
	IsSystem    bool   `json:"is_system"`
	Read        bool   `json:"read"`
}

func toWire(m *models.ChatMessage) wireMessage {
	return wireMessage{
		ID:          m.ID,
		MatchID:     m.MatchID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		SenderPhoto: m.SenderPhoto,
		Text:        m.Text,
		SentAt:      m.SentAt.UnixMilli(),
		Seq:         m.Seq,
		IsSystem:    m.IsSystem,
		Read:        m.Read,
	}
}

func (w wireMessage) model() *models.ChatMessage {
	return &models.ChatMessage{
		ID:          w.ID,
		MatchID:     w.MatchID,
		SenderID:    w.SenderID,
		SenderName:  w.SenderName,
		SenderPhoto: w.SenderPhoto,
		Text:        w.Text,
		SentAt:      time.UnixMilli(w.SentAt).UTC(),
		Seq:         w.Seq,
		IsSystem:    w.IsSystem,
		Read:        w.Read,
	}
}

func (b *RedisBroker) Publish(ctx context.Context, matchID string, msg *models.ChatMessage) error {
	payload, err := json.Marshal(toWire(msg))
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}
	if err := b.client.Publish(ctx, channelName(matchID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, matchID string, onMessage func(*models.ChatMessage)) (func(), error) {
	pubsub := b.client.Subscribe(ctx, channelName(matchID))
	// Wait for the subscription to be confirmed so no message published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		for raw := range pubsub.Channel() {
			var w wireMessage
			if err := json.Unmarshal([]byte(raw.Payload), &w); err != nil {
				slog.Warn("Dropping malformed chat payload", "match_id", matchID, "error", err)
				continue
			}
			onMessage(w.model())
		}
	}()

	return func() { _ = pubsub.Close() }, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
