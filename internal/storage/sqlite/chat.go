package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/models"
)

// AppendMessage stores a chat message. The timestamp is always assigned here,
// never taken from the caller, so ordering does not depend on client clocks.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	msg.ID = uuid.New().String()
	msg.SentAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages
		 (id, match_id, sender_id, sender_name, sender_photo, text, sent_at, is_system, read_flag)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.MatchID,
		msg.SenderID,
		msg.SenderName,
		msg.SenderPhoto,
		msg.Text,
		toMillis(msg.SentAt),
		boolToInt(msg.IsSystem),
		boolToInt(msg.Read),
	)
	if err != nil {
		return errs.Transient("append chat message", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return errs.Transient("append chat message", err)
	}
	msg.Seq = seq
	return nil
}

// ListMessages returns the latest limit messages of a match, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, matchID string, limit int) ([]*models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, match_id, sender_id, sender_name, sender_photo, text, sent_at, is_system, read_flag
		 FROM (
		     SELECT * FROM chat_messages WHERE match_id = ?
		     ORDER BY sent_at DESC, seq DESC LIMIT ?
		 ) ORDER BY sent_at, seq`,
		matchID, limit,
	)
	if err != nil {
		return nil, errs.Transient("list chat messages", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		msg := &models.ChatMessage{}
		var sentAt int64
		var isSystem, read int
		if err := rows.Scan(
			&msg.Seq,
			&msg.ID,
			&msg.MatchID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.SenderPhoto,
			&msg.Text,
			&sentAt,
			&isSystem,
			&read,
		); err != nil {
			return nil, errs.Transient("scan chat message", err)
		}
		msg.SentAt = fromMillis(sentAt)
		msg.IsSystem = isSystem != 0
		msg.Read = read != 0
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Transient("iterate chat messages", err)
	}
	return messages, nil
}

// MarkRead flags other senders' messages as read.
func (s *SQLiteStore) MarkRead(ctx context.Context, matchID, readerID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE chat_messages SET read_flag = 1 WHERE match_id = ? AND sender_id != ? AND read_flag = 0",
		matchID, readerID,
	)
	if err != nil {
		return 0, errs.Transient("mark messages read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Transient("mark messages read", err)
	}
	return n, nil
}

// CountUnread counts other senders' unread messages.
func (s *SQLiteStore) CountUnread(ctx context.Context, matchID, readerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chat_messages WHERE match_id = ? AND sender_id != ? AND read_flag = 0",
		matchID, readerID,
	).Scan(&n)
	if err != nil {
		return 0, errs.Transient("count unread messages", err)
	}
	return n, nil
}
