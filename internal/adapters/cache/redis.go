// Package cache mirrors the latest published reports into Redis so a
// restarted engine can serve last-known-good data before its first pass.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options holds the Redis connection parameters.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // 0 keeps keys forever
}

// RedisMirror implements ports.ReportMirror with JSON values under plain keys.
type RedisMirror struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to Redis and pings it. It fails if the server is unreachable.
func New(ctx context.Context, opts Options) (*RedisMirror, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache.New: ping %s: %w", opts.Addr, err)
	}
	return &RedisMirror{rdb: rdb, ttl: opts.TTL}, nil
}

// Save stores v as JSON under key.
func (m *RedisMirror) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache.Save: marshal %s: %w", key, err)
	}
	if err := m.rdb.Set(ctx, key, data, m.ttl).Err(); err != nil {
		return fmt.Errorf("cache.Save: set %s: %w", key, err)
	}
	return nil
}

// Load decodes the value under key into out. found is false when the key is absent.
func (m *RedisMirror) Load(ctx context.Context, key string, out any) (bool, error) {
	data, err := m.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache.Load: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("cache.Load: decode %s: %w", key, err)
	}
	return true, nil
}

// Close releases the connection pool.
func (m *RedisMirror) Close() error {
	return m.rdb.Close()
}
