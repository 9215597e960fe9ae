// Package session persists per-session conversation history for the
// HTTP services.
package session

import (
	"context"
	"time"
)

// Item is one recorded conversation turn.
type Item struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists session history. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append records one turn at the end of the session.
	Append(ctx context.Context, sessionID, role, content string) error

	// List returns the session's turns in insertion order. An unknown
	// session yields an empty slice, not an error.
	List(ctx context.Context, sessionID string) ([]Item, error)

	// Clear removes every turn of the session.
	Clear(ctx context.Context, sessionID string) error

	Close() error
}
