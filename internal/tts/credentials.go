package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CredentialStore holds the bearer token presented to the provider.
// Concurrent Replace calls are not coordinated; the last writer wins.
type CredentialStore interface {
	Get(ctx context.Context) (string, error)
	Replace(ctx context.Context, token string) error
}

// MemoryStore is a process-local CredentialStore
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore returns a store seeded with token
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (s *MemoryStore) Get(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryStore) Replace(_ context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// RedisStore shares the token between server replicas so one refresh
// serves all of them
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a store under key. A zero ttl keeps the token until replaced.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: key, ttl: ttl}
}

// NewRedisStoreFromURL parses a redis:// URL
func NewRedisStoreFromURL(url, key string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), key, ttl), nil
}

// Get returns an empty token when none is stored yet
func (s *RedisStore) Get(ctx context.Context) (string, error) {
	tok, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return tok, nil
}

func (s *RedisStore) Replace(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Seed stores token only when no token is present yet
func (s *RedisStore) Seed(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.client.SetNX(ctx, s.key, token, s.ttl).Err()
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
