// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"time"

	"github.com/mmynk/picadito/internal/models"
)

// QueueStore holds matchmaking queue entries.
type QueueStore interface {
	// CreateQueueEntry persists a new searching entry. ID, Status, Version,
	// CreatedAt and LastSeenAt are populated by the store when empty.
	// Searching entries of the same user last seen before staleBefore are
	// cancelled in the same transaction; a fresher searching entry makes the
	// call fail with errs.ErrValidation.
	CreateQueueEntry(ctx context.Context, entry *models.QueueEntry, staleBefore time.Time) error

	// GetQueueEntry returns errs.ErrNotFound if the entry does not exist.
	GetQueueEntry(ctx context.Context, entryID string) (*models.QueueEntry, error)

	// FindSearchingEntry returns the user's searching entry last seen at or
	// after since, or nil if there is none.
	FindSearchingEntry(ctx context.Context, userID string, since time.Time) (*models.QueueEntry, error)

	// ListSearching returns searching entries last seen at or after since, in
	// insertion order. An empty format returns every format.
	ListSearching(ctx context.Context, format models.Format, since time.Time) ([]*models.QueueEntry, error)

	// TouchQueueEntry records that the owner of a searching entry is still
	// polling. It does not change Version. Missing or consumed entries are
	// ignored.
	TouchQueueEntry(ctx context.Context, entryID string, at time.Time) error

	// DeleteQueueEntry removes an entry. Deleting a missing entry is not an error.
	DeleteQueueEntry(ctx context.Context, entryID string) error

	// DeleteStaleEntries removes searching and cancelled entries last seen
	// before cutoff and returns how many were removed.
	DeleteStaleEntries(ctx context.Context, cutoff time.Time) (int64, error)
}

// MatchStore holds matches and their rosters.
type MatchStore interface {
	// CreateMatch persists a new match. ID, CreatedAt and UpdatedAt are
	// populated by the store when empty.
	CreateMatch(ctx context.Context, match *models.Match) error

	// GetMatch returns errs.ErrNotFound if the match does not exist.
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)

	// ListMatches returns every match in the given status, in creation order.
	ListMatches(ctx context.Context, status models.MatchStatus) ([]*models.Match, error)

	// UpdateMatch loads the match and calls mutate on it inside one
	// transaction. If mutate returns an error nothing is written and the
	// error is returned unchanged. Otherwise the roster, status and
	// UpdatedAt are written back and the updated match is returned.
	UpdateMatch(ctx context.Context, matchID string, mutate func(*models.Match) error) (*models.Match, error)

	// DeleteMatch removes a match with its roster and chat log.
	// Returns errs.ErrNotFound if the match does not exist.
	DeleteMatch(ctx context.Context, matchID string) error
}

// FormationStore commits the result of group formation.
type FormationStore interface {
	// CommitFormation creates the match and removes every consumed queue entry
	// in one transaction. Each entry must still be searching with the same
	// Version it was read with; otherwise nothing is written and the call
	// fails with errs.ErrConflict.
	CommitFormation(ctx context.Context, match *models.Match, consumed []*models.QueueEntry) error

	// FindMatchForEntry returns the match a queue entry was consumed into, or
	// nil if it never was.
	FindMatchForEntry(ctx context.Context, entryID string) (*models.Match, error)
}

// ChatStore is the durable append-only log behind match chats.
type ChatStore interface {
	// AppendMessage assigns ID, SentAt and Seq and stores the message.
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error

	// ListMessages returns the latest limit messages of a match, oldest first.
	ListMessages(ctx context.Context, matchID string, limit int) ([]*models.ChatMessage, error)

	// MarkRead flags every message in the match not sent by readerID as read
	// and returns how many changed.
	MarkRead(ctx context.Context, matchID, readerID string) (int64, error)

	// CountUnread counts unread messages in the match not sent by readerID.
	CountUnread(ctx context.Context, matchID, readerID string) (int, error)
}

// Store is everything the application persists.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Store interface {
	QueueStore
	MatchStore
	FormationStore
	ChatStore

	// Close releases any resources held by the store.
	Close() error
}
