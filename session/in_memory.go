package session

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrun/core"
)

// InMemoryStore is a volatile Store implementation keeping histories in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Returned slices and maps are copies to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*record
}

type record struct {
	messages []core.Message
	metadata map[string]string
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*record)}
}

// History returns a copy of the session's message history.
func (s *InMemoryStore) History(_ context.Context, sessionID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[sessionID]
	if !ok {
		return nil, nil
	}
	out := make([]core.Message, len(rec.messages))
	copy(out, rec.messages)
	return out, nil
}

// Append adds messages to the end of the session history, creating the
// session lazily on first write.
func (s *InMemoryStore) Append(_ context.Context, sessionID string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordLocked(sessionID)
	rec.messages = append(rec.messages, msgs...)
	return nil
}

// Clear removes all messages and metadata for the session.
func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
	return nil
}

// Metadata returns a copy of the session metadata map.
func (s *InMemoryStore) Metadata(_ context.Context, sessionID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	if rec, ok := s.records[sessionID]; ok {
		for k, v := range rec.metadata {
			out[k] = v
		}
	}
	return out, nil
}

// UpdateMetadata merges the given keys into the session metadata.
func (s *InMemoryStore) UpdateMetadata(_ context.Context, sessionID string, md map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordLocked(sessionID)
	for k, v := range md {
		rec.metadata[k] = v
	}
	return nil
}

// recordLocked returns the record for sessionID, creating it if absent.
// Caller must hold the write lock.
func (s *InMemoryStore) recordLocked(sessionID string) *record {
	rec, ok := s.records[sessionID]
	if !ok {
		rec = &record{metadata: make(map[string]string)}
		s.records[sessionID] = rec
	}
	return rec
}

var _ Store = (*InMemoryStore)(nil)
