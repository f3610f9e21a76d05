// Package store persists session state to SQLite for save/resume: the
// rules-engine snapshot (mode id, progress counters, bounded fingerprint
// history) and the message transcript.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"parley/internal/logging"
	"parley/internal/mode"
	"parley/internal/types"
)

// Store wraps the SQLite database. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (creating if needed) the database at path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_snapshot (
		session_id TEXT PRIMARY KEY,
		mode_id    TEXT NOT NULL,
		state_json TEXT NOT NULL,
		saved_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS transcript (
		session_id   TEXT NOT NULL,
		seq          INTEGER NOT NULL,
		message_json TEXT NOT NULL,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (session_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_transcript_session ON transcript(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// SaveSnapshot upserts the engine snapshot for a session.
func (s *Store) SaveSnapshot(sessionID string, snap mode.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO session_snapshot (session_id, mode_id, state_json, saved_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(session_id) DO UPDATE SET
		   mode_id = excluded.mode_id,
		   state_json = excluded.state_json,
		   saved_at = CURRENT_TIMESTAMP`,
		sessionID, snap.ModeID, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	logging.StoreDebug("Snapshot saved: session=%s mode=%s", sessionID, snap.ModeID)
	return nil
}

// LoadSnapshot retrieves the saved snapshot. The bool reports existence.
// Partial or corrupted state degrades to zero values, matching the engine's
// restore semantics.
func (s *Store) LoadSnapshot(sessionID string) (mode.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stateJSON string
	err := s.db.QueryRow(
		"SELECT state_json FROM session_snapshot WHERE session_id = ?", sessionID,
	).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return mode.Snapshot{}, false, nil
	}
	if err != nil {
		return mode.Snapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap mode.Snapshot
	if err := json.Unmarshal([]byte(stateJSON), &snap); err != nil {
		logging.Get(logging.CategoryStore).Warn("Corrupt snapshot for %s, using defaults: %v", sessionID, err)
		return mode.Snapshot{}, true, nil
	}
	return snap, true, nil
}

// AppendTranscript stores one message at the given sequence number.
// Duplicate sequence numbers are silently skipped so replays are
// idempotent.
func (s *Store) AppendTranscript(sessionID string, seq int, msg types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT OR IGNORE INTO transcript (session_id, seq, message_json) VALUES (?, ?, ?)",
		sessionID, seq, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to append transcript: %w", err)
	}
	return nil
}

// LoadTranscript returns a session's messages in sequence order.
func (s *Store) LoadTranscript(sessionID string) ([]types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT message_json FROM transcript WHERE session_id = ? ORDER BY seq", sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	defer rows.Close()

	var messages []types.Message
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var msg types.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
