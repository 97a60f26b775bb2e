// Package chat implements match conversations: a durable append-only log with
// live fan-out to subscribers, and the system notices emitted by lifecycle
// operations.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/models"
	"github.com/mmynk/picadito/internal/storage"
)

const (
	// DefaultHistoryLimit is how many messages History returns when no limit is given.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps a single History call.
	MaxHistoryLimit = 500
	// MaxMessageLength is the longest message text accepted, in characters.
	MaxMessageLength = 1000
)

// Channel is the messaging channel for every match conversation.
type Channel struct {
	store  storage.ChatStore
	broker Broker
}

// NewChannel creates a Channel writing to store and fanning out through broker.
func NewChannel(store storage.ChatStore, broker Broker) *Channel {
	return &Channel{store: store, broker: broker}
}

// Publish appends msg to the match log and delivers it to live subscribers.
// Once the message is durable a fan-out failure is only logged: subscribers
// that missed it will see it in History.
func (c *Channel) Publish(ctx context.Context, msg *models.ChatMessage) error {
	if err := c.store.AppendMessage(ctx, msg); err != nil {
		return err
	}
	if err := c.broker.Publish(ctx, msg.MatchID, msg); err != nil {
		slog.Warn("Chat fan-out failed", "match_id", msg.MatchID, "message_id", msg.ID, "error", err)
	}
	return nil
}

// Send posts a message written by a user.
func (c *Channel) Send(ctx context.Context, matchID, senderID, senderName, senderPhoto, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.Validation("message text is empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, errs.Validation("message longer than %d characters", MaxMessageLength)
	}
	if senderID == "" || senderID == models.SystemSenderID {
		return nil, errs.Validation("invalid sender %q", senderID)
	}

	msg := &models.ChatMessage{
		MatchID:     matchID,
		SenderID:    senderID,
		SenderName:  senderName,
		SenderPhoto: senderPhoto,
		Text:        text,
	}
	if err := c.Publish(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Subscribe delivers every message published to matchID after the call returns.
func (c *Channel) Subscribe(ctx context.Context, matchID string, onMessage func(*models.ChatMessage)) (func(), error) {
	return c.broker.Subscribe(ctx, matchID, onMessage)
}

// History returns the latest limit messages, oldest first.
// A non-positive limit means DefaultHistoryLimit.
func (c *Channel) History(ctx context.Context, matchID string, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return c.store.ListMessages(ctx, matchID, limit)
}

// MarkRead flags every message not sent by readerID as read.
func (c *Channel) MarkRead(ctx context.Context, matchID, readerID string) (int64, error) {
	return c.store.MarkRead(ctx, matchID, readerID)
}

// UnreadCount counts messages not sent by readerID that are still unread.
func (c *Channel) UnreadCount(ctx context.Context, matchID, readerID string) (int, error) {
	return c.store.CountUnread(ctx, matchID, readerID)
}
