package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// InMemoryCache is an implementation of Cache bounded to a fixed number
// of entries, least recently used entries are evicted first.
// It is local to the process, so replicas of the service do not share it.
type InMemoryCache struct {
	items *lru.Cache[string, cacheItem]
	mutex sync.Mutex
	now   func() time.Time
}

var _ Cache = (*InMemoryCache)(nil)

type cacheItem struct {
	data []byte
	// zero means the item never expires
	expiration time.Time
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewInMemoryCache creates a cache holding at most size items
func NewInMemoryCache(size int) (*InMemoryCache, error) {
	items, err := lru.New[string, cacheItem](size)
	if err != nil {
		return nil, err
	}

	return &InMemoryCache{
		items: items,
		now:   time.Now,
	}, nil
}

// Set sets the value for the given key with the given expiration,
// -1 (or any non positive value) caches the value indefinitely.
func (c *InMemoryCache) Set(ctx context.Context, key string, data []byte, expiration time.Duration) error {
	item := cacheItem{
		data: append([]byte(nil), data...),
	}

	if expiration > 0 {
		item.expiration = c.now().Add(expiration)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items.Add(key, item)

	return nil
}

// Get gets the value for the given key, expired values are removed and reported as ErrNotFound
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	item, ok := c.items.Get(key)
	if !ok {
		return nil, ErrNotFound
	}

	if item.expired(c.now()) {
		c.items.Remove(key)
		return nil, ErrNotFound
	}

	return item.data, nil
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items.Remove(key)

	return nil
}

// Healthcheck always succeeds
func (c *InMemoryCache) Healthcheck(ctx context.Context) error {
	return nil
}

// Len returns the number of items held, including expired items not yet removed
func (c *InMemoryCache) Len() int {
	return c.items.Len()
}
