// Package cache provides a string-keyed loader cache with entry expiry. Concurrent misses for
// the same key share one load (singleflight); failed loads are never stored.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidSize is returned by New when size is not positive.
var ErrInvalidSize = errors.New("cache: size must be positive")

// Loader is a read-through cache over an expirable LRU.
type Loader[V any] struct {
	lru   *expirable.LRU[string, V]
	group singleflight.Group
}

// New creates a Loader holding at most size entries, each living for ttl (0 means no expiry).
func New[V any](size int, ttl time.Duration) (*Loader[V], error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	return &Loader[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}, nil
}

// Get returns the cached value for key, or runs load on a miss. hit reports whether the value
// came from the cache. Callers coalesced onto another goroutine's load report a miss.
func (c *Loader[V]) Get(ctx context.Context, key string, load func(context.Context) (V, error)) (value V, hit bool, err error) {
	if v, ok := c.lru.Get(key); ok {
		return v, true, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		loaded, loadErr := load(ctx)
		if loadErr != nil {
			return nil, loadErr
		}

		c.lru.Add(key, loaded)

		return loaded, nil
	})
	if err != nil {
		var zero V

		return zero, false, err
	}

	return val.(V), false, nil
}

// Remove drops the entry for key.
func (c *Loader[V]) Remove(key string) {
	c.lru.Remove(key)
}

// Purge drops every entry.
func (c *Loader[V]) Purge() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *Loader[V]) Len() int {
	return c.lru.Len()
}
