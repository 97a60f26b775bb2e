package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mmynk/picadito/internal/metrics"
	"github.com/mmynk/picadito/internal/models"
)

// Notice is the outcome of a system message. It is reported next to the
// result of the operation that triggered it and never replaces it.
type Notice struct {
	MatchID string
	Text    string

	// Message is the stored message, nil when delivery failed.
	Message *models.ChatMessage

	// Err is the delivery failure, already logged.
	Err error
}

// Delivered reports whether the message was stored.
func (n Notice) Delivered() bool {
	return n.Err == nil && n.Message != nil
}

// Notifier posts system messages on behalf of the application.
type Notifier struct {
	channel *Channel
	metrics *metrics.Metrics
}

// NewNotifier creates a Notifier posting through channel.
func NewNotifier(channel *Channel, m *metrics.Metrics) *Notifier {
	return &Notifier{channel: channel, metrics: m}
}

// Announce posts text as a system message in the match chat. Failures are
// logged and returned inside the Notice only.
func (n *Notifier) Announce(ctx context.Context, matchID, text string) Notice {
	notice := Notice{MatchID: matchID, Text: strings.TrimSpace(text)}

	msg := &models.ChatMessage{
		MatchID:    matchID,
		SenderID:   models.SystemSenderID,
		SenderName: models.SystemSenderName,
		Text:       notice.Text,
		IsSystem:   true,
		Read:       true,
	}
	if err := n.channel.Publish(ctx, msg); err != nil {
		n.metrics.SystemMessageFailed()
		slog.Warn("Could not send system message", "match_id", matchID, "error", err)
		notice.Err = err
		return notice
	}

	notice.Message = msg
	return notice
}
