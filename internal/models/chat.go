package models

import "time"

const (
	// SystemSenderID marks messages written by the application itself.
	SystemSenderID = "system"
	// SystemSenderName is shown as the author of system messages.
	SystemSenderName = "Picadito App"
)

// ChatMessage is one immutable entry in a match's conversation.
type ChatMessage struct {
	// ID is assigned by the store (UUID format).
	ID string

	MatchID string

	SenderID    string
	SenderName  string
	SenderPhoto string

	Text string

	// SentAt is assigned by the server when the message is appended.
	SentAt time.Time

	// Seq is the insertion order within the store. It breaks SentAt ties.
	Seq int64

	IsSystem bool
	Read     bool
}
