// Package pricing memoizes per-instance-size cost lookups from the
// infrastructure provider with a time-based expiry.
package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/dsyorkd/fleet-controller/internal/errors"
	"github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/provider"
)

// DefaultTTL is how long a cached price stays fresh
const DefaultTTL = time.Hour

// SizeLister is the provider capability the cache depends on
type SizeLister interface {
	ListSizes(ctx context.Context) ([]provider.Size, error)
}

type entry struct {
	size      provider.Size
	fetchedAt time.Time
}

// Cache memoizes size pricing lookups. Concurrent lookups for the same slug
// may race and redundantly fetch; the lock only guards map access.
type Cache struct {
	gateway SizeLister
	log     logger.Interface
	ttl     time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// Option configures a Cache
type Option func(*Cache)

// WithTTL overrides the default cache expiry
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithClock overrides the cache's time source, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a new pricing cache
func New(gateway SizeLister, log logger.Interface, opts ...Option) *Cache {
	c := &Cache{
		gateway: gateway,
		log:     log.WithField("component", "pricing"),
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPrice returns pricing for the given size slug, fetching from the
// provider when the cached entry is absent or stale. A slug the provider
// does not know yields ErrNotFound and is not cached.
func (c *Cache) GetPrice(ctx context.Context, sizeSlug string) (*provider.Size, error) {
	c.mu.RLock()
	cached, ok := c.entries[sizeSlug]
	c.mu.RUnlock()

	if ok && c.now().Sub(cached.fetchedAt) < c.ttl {
		return &cached.size, nil
	}

	sizes, err := c.gateway.ListSizes(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch size pricing")
	}

	fetchedAt := c.now()
	for _, size := range sizes {
		if size.Slug == sizeSlug {
			c.mu.Lock()
			c.entries[sizeSlug] = entry{size: size, fetchedAt: fetchedAt}
			c.mu.Unlock()

			c.log.WithField("size", sizeSlug).Debug("Cached size pricing")
			found := size
			return &found, nil
		}
	}

	return nil, errors.Wrapf(errors.ErrNotFound, "size '%s'", sizeSlug)
}
