package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentrun/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS agent_sessions (
	session_id TEXT PRIMARY KEY,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS agent_messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL,
	message_data TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agent_messages_session
	ON agent_messages (session_id, id);
`

// SQLiteStore persists session histories in a SQLite database using the pure
// Go modernc.org/sqlite driver. Each message is stored as a JSON row; history
// order follows the rowid so insertion order is preserved.
type SQLiteStore struct {
	db     *sql.DB
	ownsDB bool
}

// NewSQLiteStore opens (or creates) the database at dsn and prepares the
// schema. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open sqlite: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	s := &SQLiteStore{db: db, ownsDB: true}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStoreFromDB wraps an existing database handle. The caller retains
// ownership of the handle lifecycle.
func NewSQLiteStoreFromDB(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("session: init schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle when the store created it.
func (s *SQLiteStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// History returns the full message history for the session.
func (s *SQLiteStore) History(ctx context.Context, sessionID string) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_data FROM agent_messages WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: sqlite history: %w", err)
	}
	defer rows.Close()

	var msgs []core.Message
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("session: sqlite scan: %w", err)
		}
		msg, err := decodeMessage([]byte(data))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: sqlite history: %w", err)
	}
	return msgs, nil
}

// Append inserts messages inside a single transaction, creating the session
// row lazily on first write.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session: sqlite begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if err := s.touchSession(ctx, tx, sessionID, now); err != nil {
		return err
	}
	for _, msg := range msgs {
		data, err := encodeMessage(msg)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO agent_messages (session_id, message_data, created_at) VALUES (?, ?, ?)`,
			sessionID, string(data), now); err != nil {
			return fmt.Errorf("session: sqlite insert message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("session: sqlite commit: %w", err)
	}
	return nil
}

// Clear removes all messages and the session row.
func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session: sqlite begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("session: sqlite clear messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("session: sqlite clear session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("session: sqlite commit: %w", err)
	}
	return nil
}

// Metadata returns the session metadata map.
func (s *SQLiteStore) Metadata(ctx context.Context, sessionID string) (map[string]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT metadata FROM agent_sessions WHERE session_id = ?`, sessionID).Scan(&raw)
	if err == sql.ErrNoRows {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: sqlite metadata: %w", err)
	}
	md := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return nil, fmt.Errorf("session: sqlite decode metadata: %w", err)
	}
	return md, nil
}

// UpdateMetadata merges the given keys into the stored metadata document.
func (s *SQLiteStore) UpdateMetadata(ctx context.Context, sessionID string, md map[string]string) error {
	if len(md) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session: sqlite begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if err := s.touchSession(ctx, tx, sessionID, now); err != nil {
		return err
	}

	var raw string
	if err := tx.QueryRowContext(ctx,
		`SELECT metadata FROM agent_sessions WHERE session_id = ?`, sessionID).Scan(&raw); err != nil {
		return fmt.Errorf("session: sqlite metadata: %w", err)
	}
	merged := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		return fmt.Errorf("session: sqlite decode metadata: %w", err)
	}
	for k, v := range md {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("session: sqlite encode metadata: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE agent_sessions SET metadata = ?, updated_at = ? WHERE session_id = ?`,
		string(data), now, sessionID); err != nil {
		return fmt.Errorf("session: sqlite update metadata: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("session: sqlite commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) touchSession(ctx context.Context, tx *sql.Tx, sessionID string, now time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO agent_sessions (session_id, metadata, created_at, updated_at) VALUES (?, '{}', ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionID, now, now); err != nil {
		return fmt.Errorf("session: sqlite upsert session: %w", err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
