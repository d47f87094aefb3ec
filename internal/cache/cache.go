// Package cache stores model predictions (conversation titles) so the same
// prompt is not sent to the model twice.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache is a string key/value cache with expiry.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// CachedResponse represents a cached model response
type CachedResponse struct {
	Response  string
	Timestamp time.Time
}

// GenerateCacheKey hashes the parts into a cache key
func GenerateCacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Memory is an in-process cache. A zero ttl keeps entries forever.
type Memory struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory returns an empty in-process cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	val, ok := m.entries.Load(key)
	if !ok {
		return "", false
	}
	cached := val.(CachedResponse)
	if m.ttl > 0 && m.now().Sub(cached.Timestamp) > m.ttl {
		m.entries.Delete(key)
		return "", false
	}
	return cached.Response, true
}

func (m *Memory) Set(_ context.Context, key, value string) {
	m.entries.Store(key, CachedResponse{Response: value, Timestamp: m.now()})
}

// Redis caches in a Redis server under a key prefix.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewRedis connects to addr and pings it.
func NewRedis(ctx context.Context, addr, password string, ttl time.Duration, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 2 * time.Second,
		MaxRetries:  1,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &Redis{client: client, ttl: ttl, prefix: "ragchat:title:", logger: logger}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		r.logger.Warn("redis get failed", "error", err)
		return "", false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key, value string) {
	if err := r.client.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		r.logger.Warn("redis set failed", "error", err)
	}
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// New returns a Redis cache when addr is set and reachable, otherwise an
// in-process cache. The application keeps working without Redis.
func New(ctx context.Context, addr, password string, ttl time.Duration, logger *slog.Logger) Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		return NewMemory(ttl)
	}
	r, err := NewRedis(ctx, addr, password, ttl, logger)
	if err != nil {
		logger.Warn("continuing without redis cache", "error", err)
		return NewMemory(ttl)
	}
	logger.Info("connected to redis", "addr", addr)
	return r
}
