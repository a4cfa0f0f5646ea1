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
	// ErrCacheMiss means there is no usable entry for the key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry means the stored value could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrStale is returned together with an expired entry that can still be
	// revalidated with a conditional request.
	ErrStale = errors.New("stale cache entry")
)

// StaleRetention is how long revalidatable entries are kept past expiry.
const StaleRetention = 1 * time.Hour

// Manager stores page bodies in Redis.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Get returns the fresh entry for key.
// An expired but revalidatable entry is returned with ErrStale; anything
// else that cannot be served is ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry := &Entry{}
	if err := json.Unmarshal(data, entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.Fresh() {
		CacheHits.WithLabelValues("redis").Inc()
		return entry, nil
	}

	CacheMisses.Inc()
	if entry.Revalidatable() {
		return entry, ErrStale
	}
	_ = m.Delete(ctx, key)
	return nil, ErrCacheMiss
}

// Set stores entry until it expires, plus StaleRetention when it can be
// revalidated. Entries that are already expired are not stored.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}
	if entry.Revalidatable() {
		ttl += StaleRetention
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.WithLabelValues("redis").Add(float64(len(data)))
	return nil
}

// Extend stores entry again with a new expiry, after the API answered
// 304 Not Modified for it.
func (m *Manager) Extend(ctx context.Context, key CacheKey, entry *Entry, expires time.Time) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	updated := *entry
	updated.Expires = expires
	return m.Set(ctx, key, &updated)
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
