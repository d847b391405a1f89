// Package cache provides the task list cache as a mono plugin backed by
// the mono Storage interface.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-monolith/mono/pkg/storage"
)

// ListCache caches derived per-owner read models. Invalidating an owner
// drops every entry cached for that owner.
//
// Entries are addressed by the owner's generation. A reader takes the
// generation once with Generation and passes it to both Get and Set, so a
// fill that raced an invalidation lands under the retired generation and
// is never served.
type ListCache interface {
	// Generation returns the owner's current generation stamp.
	Generation(ctx context.Context, ownerID string) (string, error)

	// Get unmarshals the owner's entry for key under gen into dest.
	// Returns true on a cache hit.
	Get(ctx context.Context, ownerID, gen, key string, dest any) (bool, error)

	// Set stores value for the owner under gen and key with the default TTL.
	Set(ctx context.Context, ownerID, gen, key string, value any) error

	// InvalidateOwner drops every entry cached for the owner.
	InvalidateOwner(ctx context.Context, ownerID string) error

	// Stats returns a snapshot of hit and miss counters.
	Stats() StatsSnapshot

	// Close closes the underlying storage connection.
	Close() error
}

// StatsSnapshot is a point-in-time view of cache counters.
type StatsSnapshot struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Sets          uint64  `json:"sets"`
	Invalidations uint64  `json:"invalidations"`
	Errors        uint64  `json:"errors"`
	HitRate       float64 `json:"hit_rate"`
}

type counters struct {
	hits          atomic.Uint64
	misses        atomic.Uint64
	sets          atomic.Uint64
	invalidations atomic.Uint64
	errors        atomic.Uint64
}

// listCache implements ListCache with generation keys: each owner has a
// generation stamp that is part of every entry key, and invalidation
// replaces the stamp so older entries are never read again and age out
// through their TTL.
type listCache struct {
	storage storage.Storage
	prefix  string
	ttl     time.Duration
	now     func() time.Time
	seq     atomic.Uint64
	stats   counters
}

// NewListCache creates a ListCache wrapping the provided storage.
func NewListCache(s storage.Storage, prefix string, ttl time.Duration) ListCache {
	return &listCache{
		storage: s,
		prefix:  prefix,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *listCache) generationKey(ownerID string) string {
	return c.prefix + "gen:" + ownerID
}

// Generation returns the owner's current stamp, creating one if absent.
func (c *listCache) Generation(ctx context.Context, ownerID string) (string, error) {
	data, err := c.storage.GetWithContext(ctx, c.generationKey(ownerID))
	if err != nil {
		c.stats.errors.Add(1)
		return "", fmt.Errorf("cache generation get error: %w", err)
	}
	if len(data) > 0 {
		return string(data), nil
	}
	gen, err := c.bump(ctx, ownerID)
	if err != nil {
		c.stats.errors.Add(1)
	}
	return gen, err
}

func (c *listCache) bump(ctx context.Context, ownerID string) (string, error) {
	gen := strconv.FormatInt(c.now().UnixNano(), 36) + "." + strconv.FormatUint(c.seq.Add(1), 36)
	if err := c.storage.SetWithContext(ctx, c.generationKey(ownerID), []byte(gen), 0); err != nil {
		return "", fmt.Errorf("cache generation set error: %w", err)
	}
	return gen, nil
}

func (c *listCache) entryKey(ownerID, gen, key string) string {
	return c.prefix + "owner:" + ownerID + ":" + gen + ":" + key
}

// Get retrieves a value from the cache.
func (c *listCache) Get(ctx context.Context, ownerID, gen, key string, dest any) (bool, error) {
	data, err := c.storage.GetWithContext(ctx, c.entryKey(ownerID, gen, key))
	if err != nil {
		c.stats.errors.Add(1)
		return false, fmt.Errorf("cache get error: %w", err)
	}

	// nil or empty means key not found
	if len(data) == 0 {
		c.stats.misses.Add(1)
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.stats.errors.Add(1)
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	c.stats.hits.Add(1)
	return true, nil
}

// Set stores a value with the default TTL.
func (c *listCache) Set(ctx context.Context, ownerID, gen, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.stats.errors.Add(1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := c.storage.SetWithContext(ctx, c.entryKey(ownerID, gen, key), data, c.ttl); err != nil {
		c.stats.errors.Add(1)
		return fmt.Errorf("cache set error: %w", err)
	}

	c.stats.sets.Add(1)
	return nil
}

// InvalidateOwner replaces the owner's generation stamp.
func (c *listCache) InvalidateOwner(ctx context.Context, ownerID string) error {
	if _, err := c.bump(ctx, ownerID); err != nil {
		c.stats.errors.Add(1)
		return err
	}
	c.stats.invalidations.Add(1)
	return nil
}

// Stats returns the current counters.
func (c *listCache) Stats() StatsSnapshot {
	hits := c.stats.hits.Load()
	misses := c.stats.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return StatsSnapshot{
		Hits:          hits,
		Misses:        misses,
		Sets:          c.stats.sets.Load(),
		Invalidations: c.stats.invalidations.Load(),
		Errors:        c.stats.errors.Load(),
		HitRate:       hitRate,
	}
}

// Close closes the underlying storage.
func (c *listCache) Close() error {
	return c.storage.Close()
}
