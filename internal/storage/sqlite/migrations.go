package sqlite

import (
	"database/sql"
	"fmt"
)

// schema is applied on startup to ensure tables exist.
// Roster tables must be created after matches due to foreign key constraints.
const schema = `
CREATE TABLE IF NOT EXISTS queue_entries (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    format TEXT NOT NULL,
    zone TEXT NOT NULL DEFAULT '',
    skill_level TEXT NOT NULL,
    date_range TEXT NOT NULL,
    status TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    last_seen_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS matches (
    id TEXT PRIMARY KEY,
    format_name TEXT NOT NULL,
    format TEXT NOT NULL,
    max_players INTEGER NOT NULL,
    host_id TEXT NOT NULL,
    host_name TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL DEFAULT '',
    time TEXT NOT NULL DEFAULT '',
    duration_minutes INTEGER NOT NULL DEFAULT 0,
    venue_status TEXT NOT NULL,
    province TEXT NOT NULL DEFAULT '',
    locality TEXT NOT NULL DEFAULT '',
    neighborhood TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    venue_name TEXT NOT NULL DEFAULT '',
    lat REAL NOT NULL DEFAULT 0,
    lng REAL NOT NULL DEFAULT 0,
    visibility TEXT NOT NULL,
    cost_total REAL NOT NULL DEFAULT 0,
    cost_per_player REAL NOT NULL DEFAULT 0,
    min_age INTEGER NOT NULL DEFAULT 0,
    max_age INTEGER NOT NULL DEFAULT 0,
    skill_level TEXT NOT NULL DEFAULT 'any',
    required_positions TEXT NOT NULL DEFAULT '[]',
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    is_auto_matched INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS match_players (
    match_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    accepted INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (match_id, user_id),
    FOREIGN KEY (match_id) REFERENCES matches(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS match_applicants (
    match_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (match_id, user_id),
    FOREIGN KEY (match_id) REFERENCES matches(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS match_manual_players (
    match_id TEXT NOT NULL,
    player_id TEXT NOT NULL,
    name TEXT NOT NULL,
    added_by TEXT NOT NULL,
    added_at INTEGER NOT NULL,
    PRIMARY KEY (match_id, player_id),
    FOREIGN KEY (match_id) REFERENCES matches(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS chat_messages (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    match_id TEXT NOT NULL,
    sender_id TEXT NOT NULL,
    sender_name TEXT NOT NULL,
    sender_photo TEXT NOT NULL DEFAULT '',
    text TEXT NOT NULL,
    sent_at INTEGER NOT NULL,
    is_system INTEGER NOT NULL DEFAULT 0,
    read_flag INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (match_id) REFERENCES matches(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS formation_entries (
    entry_id TEXT PRIMARY KEY,
    match_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    FOREIGN KEY (match_id) REFERENCES matches(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_entries_one_searching
    ON queue_entries(user_id) WHERE status = 'searching';
CREATE INDEX IF NOT EXISTS idx_queue_entries_status_format ON queue_entries(status, format);
CREATE INDEX IF NOT EXISTS idx_matches_status ON matches(status);
CREATE INDEX IF NOT EXISTS idx_formation_entries_match_id ON formation_entries(match_id);
CREATE INDEX IF NOT EXISTS idx_match_players_match_id ON match_players(match_id);
CREATE INDEX IF NOT EXISTS idx_match_applicants_match_id ON match_applicants(match_id);
CREATE INDEX IF NOT EXISTS idx_chat_messages_match_id ON chat_messages(match_id, sent_at, seq);
`

// addedColumns are columns introduced after a table was first shipped.
// CREATE TABLE IF NOT EXISTS leaves older databases without them.
var addedColumns = []struct {
	table, column, ddl string
}{
	{
		table:  "queue_entries",
		column: "last_seen_at",
		ddl:    "ALTER TABLE queue_entries ADD COLUMN last_seen_at INTEGER NOT NULL DEFAULT 0",
	},
}

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	for _, c := range addedColumns {
		ok, err := hasColumn(db, c.table, c.column)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := db.Exec(c.ddl); err != nil {
			return fmt.Errorf("add %s.%s: %w", c.table, c.column, err)
		}
	}
	// Entries written before last_seen_at existed were last seen when created.
	_, err := db.Exec("UPDATE queue_entries SET last_seen_at = created_at WHERE last_seen_at = 0")
	return err
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
