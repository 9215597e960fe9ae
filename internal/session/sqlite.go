package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on a SQLite database file. Pass ":memory:"
// for an ephemeral store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the session database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_items (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_session_items_session ON session_items(session_id, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Append records one turn at the end of the session.
func (s *SQLiteStore) Append(ctx context.Context, sessionID, role, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_items (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.New().String(), sessionID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to append session item: %w", err)
	}
	return nil
}

// List returns the session's turns in insertion order.
func (s *SQLiteStore) List(ctx context.Context, sessionID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM session_items
		WHERE session_id = ?
		ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.SessionID, &item.Role, &item.Content, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Clear removes every turn of the session.
func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM session_items WHERE session_id = ?", sessionID)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
