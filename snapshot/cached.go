// ABOUTME: Wraps a SnapshotProvider with TTL caching and concurrent-fetch dedupe
// ABOUTME: Overlapping ticks against a slow upstream share one in-flight fetch instead of piling up

package snapshot

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/markalston/spare-capacity/cache"
	"github.com/markalston/spare-capacity/fleet"
)

const cacheKey = "fleet-snapshot"

// Cached wraps a SnapshotProvider so that a tick which overlaps a slow
// upstream fetch reuses the in-flight call instead of triggering a second
// identical one, and so that snapshots are reused across ticks inside a
// short TTL window when the underlying source is expensive to query
// (vCenter and BOSH both are).
type Cached struct {
	inner Provider
	cache *cache.Cache
	group singleflight.Group
}

// Provider is the subset of maintain.SnapshotProvider this package's
// providers implement, declared locally to avoid an import cycle with
// package maintain.
type Provider interface {
	Snapshot(ctx context.Context) (*fleet.FleetSnapshot, error)
}

// NewCached builds a Cached provider around inner with the given TTL.
func NewCached(inner Provider, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: cache.New(ttl)}
}

// Snapshot returns the cached snapshot if still fresh, otherwise fetches
// a new one. Concurrent callers during a fetch share its result and its
// error.
func (c *Cached) Snapshot(ctx context.Context) (*fleet.FleetSnapshot, error) {
	if v, ok := c.cache.Get(cacheKey); ok {
		return v.(*fleet.FleetSnapshot), nil
	}

	v, err, _ := c.group.Do(cacheKey, func() (interface{}, error) {
		snap, err := c.inner.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.Set(cacheKey, snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*fleet.FleetSnapshot), nil
}
