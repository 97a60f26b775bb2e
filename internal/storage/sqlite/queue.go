package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/models"
)

const queueColumns = `id, user_id, format, zone, skill_level, date_range, status, version, created_at, last_seen_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueEntry(row rowScanner) (*models.QueueEntry, error) {
	e := &models.QueueEntry{}
	var createdAt, lastSeenAt int64
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Format,
		&e.Zone,
		&e.SkillLevel,
		&e.DateRange,
		&e.Status,
		&e.Version,
		&createdAt,
		&lastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	e.CreatedAt = fromMillis(createdAt)
	e.LastSeenAt = fromMillis(lastSeenAt)
	return e, nil
}

// CreateQueueEntry inserts a new searching entry for entry.UserID.
func (s *SQLiteStore) CreateQueueEntry(ctx context.Context, entry *models.QueueEntry, staleBefore time.Time) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.LastSeenAt.IsZero() {
		entry.LastSeenAt = entry.CreatedAt
	}
	entry.Status = models.QueueSearching
	entry.Version = 1

	return s.withTx(ctx, "create queue entry", func(tx *sql.Tx) error {
		// Searching entries left behind by a crashed client no longer count.
		_, err := tx.ExecContext(ctx,
			`UPDATE queue_entries SET status = ?, version = version + 1
			 WHERE user_id = ? AND status = ? AND last_seen_at < ?`,
			string(models.QueueCancelled), entry.UserID, string(models.QueueSearching), toMillis(staleBefore),
		)
		if err != nil {
			return errs.Transient("cancel stale queue entries", err)
		}

		var existing string
		err = tx.QueryRowContext(ctx,
			"SELECT id FROM queue_entries WHERE user_id = ? AND status = ?",
			entry.UserID, string(models.QueueSearching),
		).Scan(&existing)
		switch {
		case err == nil:
			return errs.Validation("user %s is already searching (entry %s)", entry.UserID, existing)
		case err != sql.ErrNoRows:
			return errs.Transient("check searching entry", err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO queue_entries ("+queueColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			entry.ID,
			entry.UserID,
			string(entry.Format),
			entry.Zone,
			string(entry.SkillLevel),
			string(entry.DateRange),
			string(entry.Status),
			entry.Version,
			toMillis(entry.CreatedAt),
			toMillis(entry.LastSeenAt),
		)
		if isUniqueViolation(err) {
			return errs.Validation("user %s is already searching", entry.UserID)
		}
		if err != nil {
			return errs.Transient("insert queue entry", err)
		}
		return nil
	})
}

// GetQueueEntry retrieves a queue entry by ID.
func (s *SQLiteStore) GetQueueEntry(ctx context.Context, entryID string) (*models.QueueEntry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+queueColumns+" FROM queue_entries WHERE id = ?",
		entryID,
	)
	e, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("queue entry", entryID)
	}
	if err != nil {
		return nil, errs.Transient("get queue entry", err)
	}
	return e, nil
}

// FindSearchingEntry returns the user's live searching entry, or nil.
func (s *SQLiteStore) FindSearchingEntry(ctx context.Context, userID string, since time.Time) (*models.QueueEntry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+queueColumns+` FROM queue_entries
		 WHERE user_id = ? AND status = ? AND last_seen_at >= ?`,
		userID, string(models.QueueSearching), toMillis(since),
	)
	e, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Transient("find searching entry", err)
	}
	return e, nil
}

// ListSearching returns searching entries in insertion order.
func (s *SQLiteStore) ListSearching(ctx context.Context, format models.Format, since time.Time) ([]*models.QueueEntry, error) {
	query := "SELECT " + queueColumns + " FROM queue_entries WHERE status = ? AND last_seen_at >= ?"
	args := []any{string(models.QueueSearching), toMillis(since)}
	if format != "" {
		query += " AND format = ?"
		args = append(args, string(format))
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Transient("list searching entries", err)
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, errs.Transient("scan queue entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Transient("iterate queue entries", err)
	}
	return entries, nil
}

// TouchQueueEntry moves a searching entry's last_seen_at forward to at. The
// version is left alone so a concurrent formation still consumes the entry.
func (s *SQLiteStore) TouchQueueEntry(ctx context.Context, entryID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE queue_entries SET last_seen_at = ? WHERE id = ? AND status = ? AND last_seen_at < ?",
		toMillis(at), entryID, string(models.QueueSearching), toMillis(at),
	)
	if err != nil {
		return errs.Transient("touch queue entry", err)
	}
	return nil
}

// DeleteQueueEntry removes an entry if present.
func (s *SQLiteStore) DeleteQueueEntry(ctx context.Context, entryID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM queue_entries WHERE id = ?", entryID); err != nil {
		return errs.Transient("delete queue entry", err)
	}
	return nil
}

// DeleteStaleEntries removes searching and cancelled entries last seen
// before cutoff.
func (s *SQLiteStore) DeleteStaleEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM queue_entries WHERE status IN (?, ?) AND last_seen_at < ?",
		string(models.QueueSearching), string(models.QueueCancelled), toMillis(cutoff),
	)
	if err != nil {
		return 0, errs.Transient("delete stale entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Transient("delete stale entries", err)
	}
	return n, nil
}
