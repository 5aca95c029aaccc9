package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"keytrack/internal/listener"
)

// Session summarizes one listening session.
type Session struct {
	ID      string    `json:"id"`
	Started time.Time `json:"started"`
	Ended   time.Time `json:"ended,omitzero"`
	Hotkeys int       `json:"hotkeys"`
	Typings int       `json:"typings"`
}

// Open reports whether the session has not been ended.
func (s Session) Open() bool {
	return s.Ended.IsZero()
}

// ComboCount is how often a combination was dispatched.
type ComboCount struct {
	Combination string `json:"combination"`
	Count       int    `json:"count"`
}

const sessionColumns = `
	s.id, s.started_ns, s.ended_ns,
	COALESCE(SUM(n.kind = 'hotkey'), 0),
	COALESCE(SUM(n.kind = 'typing'), 0)`

// Sessions lists every session, most recent first.
func (j *Journal) Sessions() ([]Session, error) {
	rows, err := j.db.Query(`
		SELECT` + sessionColumns + `
		FROM sessions s
		LEFT JOIN notifications n ON n.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_ns DESC, s.id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Session returns one session summary.
func (j *Journal) Session(id string) (*Session, error) {
	row := j.db.QueryRow(`
		SELECT`+sessionColumns+`
		FROM sessions s
		LEFT JOIN notifications n ON n.session_id = s.id
		WHERE s.id = ?
		GROUP BY s.id`, id)

	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var s Session
	var started int64
	var ended sql.NullInt64
	if err := row.Scan(&s.ID, &started, &ended, &s.Hotkeys, &s.Typings); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("scan session: %w", err)
	}
	s.Started = time.Unix(0, started)
	if ended.Valid {
		s.Ended = time.Unix(0, ended.Int64)
	}
	return s, nil
}

// Notifications returns the notifications of a session in emission order.
func (j *Journal) Notifications(sessionID string) ([]listener.Notification, error) {
	if _, err := j.Session(sessionID); err != nil {
		return nil, err
	}

	rows, err := j.db.Query(`
		SELECT session_id, timestamp_ns, kind, combination, keys, action, text
		FROM notifications
		WHERE session_id = ?
		ORDER BY id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []listener.Notification
	for rows.Next() {
		var n listener.Notification
		var ts int64
		var kind string
		var combo, keys, action, text sql.NullString
		if err := rows.Scan(&n.SessionID, &ts, &kind, &combo, &keys, &action, &text); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Time = time.Unix(0, ts)
		n.Kind = listener.Kind(kind)
		n.Combination = combo.String
		n.Action = action.String
		n.Text = text.String
		if keys.Valid {
			if err := json.Unmarshal([]byte(keys.String), &n.Keys); err != nil {
				return nil, fmt.Errorf("decode keys: %w", err)
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// TopCombinations returns the most frequently dispatched combinations
// across all sessions.
func (j *Journal) TopCombinations(limit int) ([]ComboCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.Query(`
		SELECT combination, COUNT(*) AS c
		FROM notifications
		WHERE kind = 'hotkey'
		GROUP BY combination
		ORDER BY c DESC, combination ASC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query combinations: %w", err)
	}
	defer rows.Close()

	var out []ComboCount
	for rows.Next() {
		var c ComboCount
		if err := rows.Scan(&c.Combination, &c.Count); err != nil {
			return nil, fmt.Errorf("scan combination: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate combinations: %w", err)
	}
	return out, nil
}
