package session

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrun/core"
)

// HybridStoreOptions configure a HybridStore.
type HybridStoreOptions struct {
	// FlushEvery is the number of appended messages buffered before they
	// are written through to the durable store. Defaults to 1
	// (write-through on every append).
	FlushEvery int
}

// HybridStore layers a fast cache store over a durable store. Reads are
// served from the cache and fall back to the durable store on a miss, in
// which case the cache is re-warmed. Writes always land in the cache and are
// flushed to the durable store every FlushEvery messages or on an explicit
// Flush call.
type HybridStore struct {
	cache   Store
	durable Store
	opts    HybridStoreOptions

	mu      sync.Mutex
	pending map[string][]core.Message
}

// NewHybridStore combines a cache store and a durable store.
func NewHybridStore(cache, durable Store, optFns ...func(o *HybridStoreOptions)) *HybridStore {
	opts := HybridStoreOptions{FlushEvery: 1}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FlushEvery < 1 {
		opts.FlushEvery = 1
	}
	return &HybridStore{
		cache:   cache,
		durable: durable,
		opts:    opts,
		pending: make(map[string][]core.Message),
	}
}

// History reads from the cache first. An empty cache result falls back to
// the durable store; a durable hit re-warms the cache so subsequent reads
// stay fast.
func (s *HybridStore) History(ctx context.Context, sessionID string) ([]core.Message, error) {
	msgs, err := s.cache.History(ctx, sessionID)
	if err == nil && len(msgs) > 0 {
		return msgs, nil
	}
	msgs, derr := s.durable.History(ctx, sessionID)
	if derr != nil {
		if err != nil {
			return nil, err
		}
		return nil, derr
	}
	if len(msgs) > 0 {
		// Re-warm best effort; the durable copy remains authoritative.
		_ = s.cache.Append(ctx, sessionID, msgs...)
	}
	return msgs, nil
}

// Append writes to the cache immediately and buffers the messages for the
// durable store until the flush threshold is reached.
func (s *HybridStore) Append(ctx context.Context, sessionID string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := s.cache.Append(ctx, sessionID, msgs...); err != nil {
		return err
	}
	s.mu.Lock()
	s.pending[sessionID] = append(s.pending[sessionID], msgs...)
	flush := len(s.pending[sessionID]) >= s.opts.FlushEvery
	var batch []core.Message
	if flush {
		batch = s.pending[sessionID]
		delete(s.pending, sessionID)
	}
	s.mu.Unlock()
	if flush {
		return s.durable.Append(ctx, sessionID, batch...)
	}
	return nil
}

// Flush writes any buffered messages for the session to the durable store.
func (s *HybridStore) Flush(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	batch := s.pending[sessionID]
	delete(s.pending, sessionID)
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return s.durable.Append(ctx, sessionID, batch...)
}

// Clear removes the session from both layers and drops buffered writes.
func (s *HybridStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.pending, sessionID)
	s.mu.Unlock()
	if err := s.cache.Clear(ctx, sessionID); err != nil {
		return err
	}
	return s.durable.Clear(ctx, sessionID)
}

// Metadata reads metadata cache-first with durable fallback.
func (s *HybridStore) Metadata(ctx context.Context, sessionID string) (map[string]string, error) {
	md, err := s.cache.Metadata(ctx, sessionID)
	if err == nil && len(md) > 0 {
		return md, nil
	}
	return s.durable.Metadata(ctx, sessionID)
}

// UpdateMetadata writes metadata through to both layers.
func (s *HybridStore) UpdateMetadata(ctx context.Context, sessionID string, md map[string]string) error {
	if err := s.cache.UpdateMetadata(ctx, sessionID, md); err != nil {
		return err
	}
	return s.durable.UpdateMetadata(ctx, sessionID, md)
}

var _ Store = (*HybridStore)(nil)
