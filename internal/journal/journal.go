// Package journal keeps a SQLite record of the notifications a listener
// emitted. Only notifications are stored; tracker state never is.
package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"keytrack/internal/listener"
	"keytrack/internal/logging"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    started_ns  INTEGER NOT NULL,
    ended_ns    INTEGER
);

CREATE TABLE IF NOT EXISTS notifications (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    timestamp_ns INTEGER NOT NULL,
    kind         TEXT NOT NULL,
    combination  TEXT,
    keys         TEXT,
    action       TEXT,
    text         TEXT
);

CREATE INDEX IF NOT EXISTS idx_notifications_session ON notifications(session_id, id);
CREATE INDEX IF NOT EXISTS idx_notifications_combination ON notifications(combination);
`

// Journal is a SQLite-backed notification log.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, schemaVersion)
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record stores a notification, creating its session on first use, and
// returns the new row ID.
func (j *Journal) Record(n listener.Notification) (int64, error) {
	if n.SessionID == "" {
		return 0, errors.New("record notification: missing session id")
	}

	var keys sql.NullString
	if len(n.Keys) > 0 {
		data, err := json.Marshal(n.Keys)
		if err != nil {
			return 0, fmt.Errorf("encode keys: %w", err)
		}
		keys = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := j.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := n.Time.UnixNano()
	if _, err := tx.Exec(`
		INSERT INTO sessions (id, started_ns) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING`, n.SessionID, ts,
	); err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO notifications (session_id, timestamp_ns, kind, combination, keys, action, text)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.SessionID, ts, string(n.Kind), nullable(n.Combination), keys, nullable(n.Action), nullable(n.Text),
	)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return id, nil
}

// EndSession marks a session as finished.
func (j *Journal) EndSession(id string, at time.Time) error {
	result, err := j.db.Exec(`UPDATE sessions SET ended_ns = ? WHERE id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes a session and its notifications.
func (j *Journal) DeleteSession(id string) error {
	result, err := j.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Attach records every notification l emits. Write failures are logged.
func (j *Journal) Attach(l *listener.Listener, logger *logging.Logger) {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("journal")
	l.Handle(func(n listener.Notification) {
		if _, err := j.Record(n); err != nil {
			logger.Error("record notification", "error", err, "kind", string(n.Kind))
		}
	})
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
