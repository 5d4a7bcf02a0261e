package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"stash/internal/server/config"
)

// ErrSessionNotFound is returned when a key is absent or has expired.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore is the key-value store holding token-to-user mappings.
// Entries expire after their TTL; an expired entry behaves as absent.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// OpenSessions constructs the session store selected by the configuration.
func OpenSessions(cfg *config.Config) (SessionStore, error) {
	switch cfg.SessionBackend {
	case "memory":
		return NewMemorySessions(), nil
	case "redis":
		return NewRedisSessions(cfg.RedisAddr), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// RedisSessions stores sessions in Redis, relying on its native key TTLs.
type RedisSessions struct {
	client *redis.Client
}

// NewRedisSessions creates a Redis-backed session store.
func NewRedisSessions(addr string) *RedisSessions {
	return &RedisSessions{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (r *RedisSessions) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return val, nil
}

func (r *RedisSessions) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

func (r *RedisSessions) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *RedisSessions) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisSessions) Close() error {
	return r.client.Close()
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemorySessions is an in-process session store for tests and local runs.
// Expiry is enforced lazily on read.
type MemorySessions struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemorySessions creates an empty in-memory session store.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemorySessions) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", ErrSessionNotFound
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return "", ErrSessionNotFound
	}
	return e.value, nil
}

func (m *MemorySessions) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid session ttl %v", ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemorySessions) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *MemorySessions) Ping(ctx context.Context) error { return nil }

func (m *MemorySessions) Close() error { return nil }
