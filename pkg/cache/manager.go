// Package cache provides a Redis-backed response cache for billing API
// payloads. Monthly billing data changes slowly, so identical GETs inside
// the freshness window are served from Redis instead of spending quota.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache.
	ErrCacheMiss = errors.New("cache miss")
)

// DefaultTTL is how long a billing payload stays fresh. Usage data for a
// closed month is effectively immutable; one hour keeps reruns cheap
// without hiding late corrections for too long.
const DefaultTTL = time.Hour

// Manager handles caching operations with a Redis backend.
type Manager struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewManager creates a cache manager. A ttl <= 0 selects DefaultTTL.
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Get retrieves a cached payload by key.
// Returns ErrCacheMiss if the key doesn't exist.
func (m *Manager) Get(ctx context.Context, key Key) (json.RawMessage, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	cacheHits.Inc()
	return json.RawMessage(data), nil
}

// Set stores a payload under the manager's TTL. Redis expiry removes the
// entry when the freshness window closes.
func (m *Manager) Set(ctx context.Context, key Key, payload json.RawMessage) error {
	if len(payload) == 0 {
		return fmt.Errorf("cache payload cannot be empty")
	}

	if err := m.redis.Set(ctx, key.String(), []byte(payload), m.ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a cached payload.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
