package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const matchColumns = `id, format_name, format, max_players, host_id, host_name, date, time,
	duration_minutes, venue_status, province, locality, neighborhood, address, venue_name,
	lat, lng, visibility, cost_total, cost_per_player, min_age, max_age, skill_level,
	required_positions, description, status, is_auto_matched, created_at, updated_at`

// CreateMatch persists a new match with its roster.
func (s *SQLiteStore) CreateMatch(ctx context.Context, match *models.Match) error {
	return s.withTx(ctx, "create match", func(tx *sql.Tx) error {
		return insertMatch(ctx, tx, match)
	})
}

// CommitFormation creates an auto-formed match and consumes its queue entries
// atomically, remembering which match each consumed entry went to.
func (s *SQLiteStore) CommitFormation(ctx context.Context, match *models.Match, consumed []*models.QueueEntry) error {
	return s.withTx(ctx, "commit formation", func(tx *sql.Tx) error {
		if err := insertMatch(ctx, tx, match); err != nil {
			return err
		}
		for _, entry := range consumed {
			res, err := tx.ExecContext(ctx,
				"DELETE FROM queue_entries WHERE id = ? AND status = ? AND version = ?",
				entry.ID, string(models.QueueSearching), entry.Version,
			)
			if err != nil {
				return errs.Transient("consume queue entry", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return errs.Transient("consume queue entry", err)
			}
			if n != 1 {
				return fmt.Errorf("%w: queue entry %s of user %s is no longer available",
					errs.ErrConflict, entry.ID, entry.UserID)
			}
			_, err = tx.ExecContext(ctx,
				"INSERT INTO formation_entries (entry_id, match_id, user_id) VALUES (?, ?, ?)",
				entry.ID, match.ID, entry.UserID,
			)
			if err != nil {
				return errs.Transient("record consumed entry", err)
			}
		}
		return nil
	})
}

func insertMatch(ctx context.Context, q querier, match *models.Match) error {
	if match.ID == "" {
		match.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if match.CreatedAt.IsZero() {
		match.CreatedAt = now
	}
	if match.UpdatedAt.IsZero() {
		match.UpdatedAt = match.CreatedAt
	}

	positions, err := json.Marshal(match.Filters.RequiredPositions)
	if err != nil {
		return fmt.Errorf("failed to encode required positions: %w", err)
	}
	if match.Filters.RequiredPositions == nil {
		positions = []byte("[]")
	}

	_, err = q.ExecContext(ctx,
		"INSERT INTO matches ("+matchColumns+`) VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		match.ID,
		match.FormatName,
		string(match.Format),
		match.MaxPlayers,
		match.HostID,
		match.HostName,
		match.Date,
		match.Time,
		match.DurationMinutes,
		string(match.VenueStatus),
		match.Location.Province,
		match.Location.Locality,
		match.Location.Neighborhood,
		match.Location.Address,
		match.Location.VenueName,
		match.Location.Lat,
		match.Location.Lng,
		string(match.Visibility),
		match.Cost.Total,
		match.Cost.PerPlayer,
		match.Filters.MinAge,
		match.Filters.MaxAge,
		string(match.Filters.SkillLevel),
		string(positions),
		match.Description,
		string(match.Status),
		boolToInt(match.IsAutoMatched),
		toMillis(match.CreatedAt),
		toMillis(match.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return errs.Validation("match %s already exists", match.ID)
	}
	if err != nil {
		return errs.Transient("insert match", err)
	}

	return writeRoster(ctx, q, match)
}

// writeRoster replaces the stored roster of a match with the in-memory one.
func writeRoster(ctx context.Context, q querier, match *models.Match) error {
	for _, table := range []string{"match_players", "match_applicants", "match_manual_players"} {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE match_id = ?", match.ID); err != nil {
			return errs.Transient("clear "+table, err)
		}
	}

	accepted := make(map[string]bool, len(match.AcceptedPlayers))
	for _, id := range match.AcceptedPlayers {
		accepted[id] = true
	}
	for i, id := range match.Players {
		_, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO match_players (match_id, user_id, position, accepted) VALUES (?, ?, ?, ?)",
			match.ID, id, i, boolToInt(accepted[id]),
		)
		if err != nil {
			return errs.Transient("insert player", err)
		}
	}

	for i, id := range match.Applicants {
		_, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO match_applicants (match_id, user_id, position) VALUES (?, ?, ?)",
			match.ID, id, i,
		)
		if err != nil {
			return errs.Transient("insert applicant", err)
		}
	}

	for id, p := range match.ManualPlayers {
		_, err := q.ExecContext(ctx,
			"INSERT INTO match_manual_players (match_id, player_id, name, added_by, added_at) VALUES (?, ?, ?, ?, ?)",
			match.ID, id, p.Name, p.AddedBy, toMillis(p.AddedAt),
		)
		if err != nil {
			return errs.Transient("insert manual player", err)
		}
	}
	return nil
}

// GetMatch retrieves a match by ID, including its roster.
func (s *SQLiteStore) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	return loadMatch(ctx, s.db, matchID)
}

func loadMatch(ctx context.Context, q querier, matchID string) (*models.Match, error) {
	row := q.QueryRowContext(ctx, "SELECT "+matchColumns+" FROM matches WHERE id = ?", matchID)
	match, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("match", matchID)
	}
	if err != nil {
		return nil, errs.Transient("get match", err)
	}
	if err := loadRoster(ctx, q, match); err != nil {
		return nil, err
	}
	return match, nil
}

func scanMatch(row rowScanner) (*models.Match, error) {
	m := &models.Match{}
	var (
		positions string
		autoMatch int
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&m.ID,
		&m.FormatName,
		&m.Format,
		&m.MaxPlayers,
		&m.HostID,
		&m.HostName,
		&m.Date,
		&m.Time,
		&m.DurationMinutes,
		&m.VenueStatus,
		&m.Location.Province,
		&m.Location.Locality,
		&m.Location.Neighborhood,
		&m.Location.Address,
		&m.Location.VenueName,
		&m.Location.Lat,
		&m.Location.Lng,
		&m.Visibility,
		&m.Cost.Total,
		&m.Cost.PerPlayer,
		&m.Filters.MinAge,
		&m.Filters.MaxAge,
		&m.Filters.SkillLevel,
		&positions,
		&m.Description,
		&m.Status,
		&autoMatch,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(positions), &m.Filters.RequiredPositions); err != nil {
		return nil, fmt.Errorf("failed to decode required positions: %w", err)
	}
	m.IsAutoMatched = autoMatch != 0
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return m, nil
}

func loadRoster(ctx context.Context, q querier, match *models.Match) error {
	rows, err := q.QueryContext(ctx,
		"SELECT user_id, accepted FROM match_players WHERE match_id = ? ORDER BY position",
		match.ID,
	)
	if err != nil {
		return errs.Transient("get players", err)
	}
	for rows.Next() {
		var id string
		var accepted int
		if err := rows.Scan(&id, &accepted); err != nil {
			rows.Close()
			return errs.Transient("scan player", err)
		}
		match.Players = append(match.Players, id)
		if accepted != 0 {
			match.AcceptedPlayers = append(match.AcceptedPlayers, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errs.Transient("iterate players", err)
	}

	rows, err = q.QueryContext(ctx,
		"SELECT user_id FROM match_applicants WHERE match_id = ? ORDER BY position",
		match.ID,
	)
	if err != nil {
		return errs.Transient("get applicants", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return errs.Transient("scan applicant", err)
		}
		match.Applicants = append(match.Applicants, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errs.Transient("iterate applicants", err)
	}

	rows, err = q.QueryContext(ctx,
		"SELECT player_id, name, added_by, added_at FROM match_manual_players WHERE match_id = ?",
		match.ID,
	)
	if err != nil {
		return errs.Transient("get manual players", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id      string
			p       models.ManualPlayer
			addedAt int64
		)
		if err := rows.Scan(&id, &p.Name, &p.AddedBy, &addedAt); err != nil {
			return errs.Transient("scan manual player", err)
		}
		p.AddedAt = fromMillis(addedAt)
		if match.ManualPlayers == nil {
			match.ManualPlayers = make(map[string]models.ManualPlayer)
		}
		match.ManualPlayers[id] = p
	}
	if err := rows.Err(); err != nil {
		return errs.Transient("iterate manual players", err)
	}
	return nil
}

// ListMatches retrieves every match in the given status.
func (s *SQLiteStore) ListMatches(ctx context.Context, status models.MatchStatus) ([]*models.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+matchColumns+" FROM matches WHERE status = ? ORDER BY created_at, rowid",
		string(status),
	)
	if err != nil {
		return nil, errs.Transient("list matches", err)
	}

	var matches []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			rows.Close()
			return nil, errs.Transient("scan match", err)
		}
		matches = append(matches, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errs.Transient("iterate matches", err)
	}

	// Rosters are loaded after the cursor is closed; the pool has a single connection.
	for _, m := range matches {
		if err := loadRoster(ctx, s.db, m); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

// UpdateMatch applies mutate to a match inside a transaction.
func (s *SQLiteStore) UpdateMatch(ctx context.Context, matchID string, mutate func(*models.Match) error) (*models.Match, error) {
	var updated *models.Match
	err := s.withTx(ctx, "update match", func(tx *sql.Tx) error {
		match, err := loadMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if err := mutate(match); err != nil {
			return err
		}

		match.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx,
			"UPDATE matches SET status = ?, updated_at = ? WHERE id = ?",
			string(match.Status), toMillis(match.UpdatedAt), match.ID,
		)
		if err != nil {
			return errs.Transient("update match", err)
		}
		if err := writeRoster(ctx, tx, match); err != nil {
			return err
		}
		updated = match
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteMatch removes a match; roster rows and chat messages cascade.
func (s *SQLiteStore) DeleteMatch(ctx context.Context, matchID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM matches WHERE id = ?", matchID)
	if err != nil {
		return errs.Transient("delete match", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Transient("delete match", err)
	}
	if n == 0 {
		return errs.NotFound("match", matchID)
	}
	return nil
}

// FindMatchForEntry returns the match a consumed queue entry was placed in,
// or nil if the entry was never consumed.
func (s *SQLiteStore) FindMatchForEntry(ctx context.Context, entryID string) (*models.Match, error) {
	var matchID string
	err := s.db.QueryRowContext(ctx,
		"SELECT match_id FROM formation_entries WHERE entry_id = ?",
		entryID,
	).Scan(&matchID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Transient("find match for entry", err)
	}
	return loadMatch(ctx, s.db, matchID)
}
