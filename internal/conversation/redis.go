package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKeyPrefix namespaces session keys.
const DefaultRedisKeyPrefix = "thaichat:session:"

// ErrStore wraps failures talking to the backing store.
var ErrStore = errors.New("session store unavailable")

// RedisStore keeps each session as one JSON value in redis.
// Every Save refreshes the key's TTL, so a session lives as long as its
// browser cookie and disappears on its own afterwards.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store using client. ttl of zero keeps keys forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: DefaultRedisKeyPrefix,
		ttl:    ttl,
	}
}

// Ping checks that redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping redis: %v", ErrStore, err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewSession(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session %s: %v", ErrStore, id, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	// The key is authoritative, not whatever id was serialized.
	sess.ID = id
	return &sess, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if sess.Transient() {
		return nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: set session %s: %v", ErrStore, sess.ID, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: delete session %s: %v", ErrStore, id, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}
