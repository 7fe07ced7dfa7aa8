package session

import (
	"context"

	"github.com/hupe1980/agentrun/core"
)

// Store persists conversation history and metadata keyed by session id.
// History returns messages in insertion order; Append is atomic per call.
// Implementations must tolerate ids they have never seen (empty history,
// empty metadata) rather than returning an error.
type Store interface {
	// History returns the full message history for the session.
	History(ctx context.Context, sessionID string) ([]core.Message, error)

	// Append adds messages to the end of the session history.
	Append(ctx context.Context, sessionID string, msgs ...core.Message) error

	// Clear removes all messages and metadata for the session.
	Clear(ctx context.Context, sessionID string) error

	// Metadata returns the session metadata map (never nil).
	Metadata(ctx context.Context, sessionID string) (map[string]string, error)

	// UpdateMetadata merges the given keys into the session metadata.
	UpdateMetadata(ctx context.Context, sessionID string, md map[string]string) error
}
