package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentrun/core"
)

// RedisStoreOptions configure a RedisStore.
type RedisStoreOptions struct {
	// KeyPrefix namespaces all session keys. Defaults to "agentrun:session".
	KeyPrefix string

	// TTL applied to session keys on every write. Zero means no expiration.
	TTL time.Duration
}

// RedisStore persists session histories in Redis. Messages live in a list of
// JSON documents and metadata in a hash, both namespaced under KeyPrefix.
// It works against single nodes, sentinel and cluster deployments through
// redis.UniversalClient.
type RedisStore struct {
	client redis.UniversalClient
	opts   RedisStoreOptions
}

// NewRedisStore constructs a store on top of an existing client. The caller
// retains ownership of the client lifecycle.
func NewRedisStore(client redis.UniversalClient, optFns ...func(o *RedisStoreOptions)) *RedisStore {
	opts := RedisStoreOptions{KeyPrefix: "agentrun:session"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RedisStore{client: client, opts: opts}
}

// NewRedisStoreFromURL creates a dedicated client from a Redis URL such as
// redis://localhost:6379/0 and wraps it in a store.
func NewRedisStoreFromURL(url string, optFns ...func(o *RedisStoreOptions)) (*RedisStore, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("session: parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(ropts), optFns...), nil
}

// History returns the full message history for the session.
func (s *RedisStore) History(ctx context.Context, sessionID string) ([]core.Message, error) {
	raw, err := s.client.LRange(ctx, s.messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("session: redis lrange: %w", err)
	}
	msgs := make([]core.Message, 0, len(raw))
	for _, item := range raw {
		msg, err := decodeMessage([]byte(item))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Append pushes messages onto the session list in a single pipeline.
func (s *RedisStore) Append(ctx context.Context, sessionID string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	encoded := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := encodeMessage(msg)
		if err != nil {
			return err
		}
		encoded = append(encoded, data)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.messagesKey(sessionID), encoded...)
	if s.opts.TTL > 0 {
		pipe.Expire(ctx, s.messagesKey(sessionID), s.opts.TTL)
		pipe.Expire(ctx, s.metadataKey(sessionID), s.opts.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: redis append: %w", err)
	}
	return nil
}

// Clear deletes the message list and metadata hash for the session.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.messagesKey(sessionID), s.metadataKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("session: redis clear: %w", err)
	}
	return nil
}

// Metadata returns the session metadata hash.
func (s *RedisStore) Metadata(ctx context.Context, sessionID string) (map[string]string, error) {
	md, err := s.client.HGetAll(ctx, s.metadataKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("session: redis metadata: %w", err)
	}
	if md == nil {
		md = make(map[string]string)
	}
	return md, nil
}

// UpdateMetadata merges the given keys into the metadata hash.
func (s *RedisStore) UpdateMetadata(ctx context.Context, sessionID string, md map[string]string) error {
	if len(md) == 0 {
		return nil
	}
	fields := make([]any, 0, len(md)*2)
	for k, v := range md {
		fields = append(fields, k, v)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.metadataKey(sessionID), fields...)
	if s.opts.TTL > 0 {
		pipe.Expire(ctx, s.metadataKey(sessionID), s.opts.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: redis update metadata: %w", err)
	}
	return nil
}

func (s *RedisStore) messagesKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:messages", s.opts.KeyPrefix, sessionID)
}

func (s *RedisStore) metadataKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:metadata", s.opts.KeyPrefix, sessionID)
}

var _ Store = (*RedisStore)(nil)
