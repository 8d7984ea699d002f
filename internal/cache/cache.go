// Package cache memoizes extraction results per URL and coalesces concurrent
// lookups of the same URL into one computation.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"jetpreview/internal/domain"
	"jetpreview/internal/metrics"
)

// DefaultTTL is how long a computed preview is served from the cache.
const DefaultTTL = 12 * time.Hour

// ErrComputePanic is returned to every waiter when the computation panicked.
var ErrComputePanic = errors.New("preview computation panicked")

// Store holds cached previews. Implementations must be safe for concurrent use.
type Store interface {
	// Get reports whether a live entry exists for key.
	Get(ctx context.Context, key string) (domain.Metadata, bool, error)
	// Set stores md under key for ttl.
	Set(ctx context.Context, key string, md domain.Metadata, ttl time.Duration) error
}

// ComputeFunc produces the preview for a URL on a miss.
type ComputeFunc func(ctx context.Context, url string) (domain.Metadata, error)

// Options configures a Cache.
type Options struct {
	TTL time.Duration
	// ComputeTimeout bounds a shared computation independently of the
	// callers waiting on it.
	ComputeTimeout time.Duration
}

// Cache is a read-through cache in front of a Store.
type Cache struct {
	store Store
	group singleflight.Group
	opts  Options
	log   logrus.FieldLogger
}

// New creates a Cache over store.
func New(store Store, opts Options, logger logrus.FieldLogger) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.ComputeTimeout <= 0 {
		opts.ComputeTimeout = 30 * time.Second
	}
	return &Cache{
		store: store,
		opts:  opts,
		log:   logger.WithField("component", "cache"),
	}
}

// GetOrCompute returns the cached preview for url, computing it on a miss.
// Concurrent misses for the same url share one computation, which keeps
// running when the caller that started it goes away. Failed computations are
// not cached; empty results are.
func (c *Cache) GetOrCompute(ctx context.Context, url string, compute ComputeFunc) (domain.Metadata, error) {
	if md, ok := c.lookup(ctx, url); ok {
		metrics.ObserveCache("hit")
		return md, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(url, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				c.log.WithField("url", url).Errorf("Preview computation panicked: %v", r)
				err = fmt.Errorf("%w: %v", ErrComputePanic, r)
			}
		}()

		// A flight that finished just before this one started may have
		// filled the entry.
		if md, ok := c.lookup(flightCtx, url); ok {
			return md, nil
		}

		computeCtx, cancel := context.WithTimeout(flightCtx, c.opts.ComputeTimeout)
		defer cancel()

		md, err := compute(computeCtx, url)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(flightCtx, url, md, c.opts.TTL); err != nil {
			c.log.WithError(err).WithField("url", url).Warn("Failed to store preview")
		}
		return md, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.ObserveCache("shared")
		} else {
			metrics.ObserveCache("miss")
		}
		if res.Err != nil {
			return domain.Metadata{}, res.Err
		}
		return res.Val.(domain.Metadata), nil
	case <-ctx.Done():
		return domain.Metadata{}, ctx.Err()
	}
}

// lookup treats store failures as misses.
func (c *Cache) lookup(ctx context.Context, url string) (domain.Metadata, bool) {
	md, ok, err := c.store.Get(ctx, url)
	if err != nil {
		c.log.WithError(err).WithField("url", url).Warn("Cache lookup failed")
		return domain.Metadata{}, false
	}
	return md, ok
}
