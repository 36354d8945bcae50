// Package querycache is the client-side keyed cache that sits between the
// SDK and screens. Entries are fresh for a staleness window; stale or
// invalidated entries are refetched on next read, and concurrent reads of
// one key share a single fetch.
package querycache

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Key is an ordered tuple such as Key{"gigs", "list", "design"}.
type Key []string

const sep = "\x1f"

func (k Key) String() string {
	return strings.Join(k, sep)
}

// HasPrefix reports whether p is a leading part of k.
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

type entry struct {
	key       Key
	value     any
	updatedAt time.Time
	staleAt   time.Time
	invalid   bool
}

func (e *entry) fresh(now time.Time) bool {
	return !e.invalid && now.Before(e.staleAt)
}

type Cache struct {
	mu    sync.Mutex
	store *gocache.Cache
	group singleflight.Group

	// epoch moves on every invalidation; a fetch that overlaps one is kept
	// but stored as invalid.
	epoch uint64

	StaleTime time.Duration
	// Retain is how long an entry outlives its staleness window before it is
	// evicted from memory.
	Retain time.Duration
	now    func() time.Time
}

// New returns a cache whose entries are fresh for staleTime by default.
func New(staleTime time.Duration) *Cache {
	if staleTime <= 0 {
		staleTime = 30 * time.Second
	}
	return &Cache{
		store:     gocache.New(gocache.NoExpiration, 5*time.Minute),
		StaleTime: staleTime,
		Retain:    5 * time.Minute,
		now:       time.Now,
	}
}

// Query returns the cached value for key when fresh, otherwise calls fetch.
// ttl <= 0 uses StaleTime. Fetch errors are returned and never cached.
func (c *Cache) Query(ctx context.Context, key Key, ttl time.Duration, fetch func(context.Context) (any, error)) (any, error) {
	if v, ok := c.fresh(key); ok {
		return v, nil
	}

	c.mu.Lock()
	started := c.epoch
	c.mu.Unlock()

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		e := c.put(key, v, ttl)
		if c.epoch != started {
			e.invalid = true
		}
		return v, nil
	})
	return v, err
}

// Fetch is the typed form of Query.
func Fetch[T any](ctx context.Context, c *Cache, key Key, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	v, err := c.Query(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// Peek returns the stored value regardless of freshness.
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.get(key)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// SetData overwrites key with v and marks it fresh.
func (c *Cache) SetData(key Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, v, 0)
}

// Update applies fn to the current value (nil, false when absent) and stores
// the result as fresh.
func (c *Cache) Update(key Key, fn func(old any, ok bool) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var (
		old any
		ok  bool
	)
	if e, found := c.get(key); found {
		old, ok = e.value, true
	}
	c.put(key, fn(old, ok), 0)
}

// Invalidate marks every key starting with prefix so the next read refetches.
// An empty prefix invalidates everything.
func (c *Cache) Invalidate(prefix ...string) {
	p := Key(prefix)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	for _, item := range c.store.Items() {
		e, ok := item.Object.(*entry)
		if ok && e.key.HasPrefix(p) {
			e.invalid = true
		}
	}
}

func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.store.Delete(key.String())
}

func (c *Cache) fresh(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.get(key)
	if !ok || !e.fresh(c.now()) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) get(key Key) (*entry, bool) {
	v, ok := c.store.Get(key.String())
	if !ok {
		return nil, false
	}
	e, ok := v.(*entry)
	return e, ok
}

// put must be called with mu held.
func (c *Cache) put(key Key, v any, ttl time.Duration) *entry {
	if ttl <= 0 {
		ttl = c.StaleTime
	}
	now := c.now()
	e := &entry{
		key:       append(Key(nil), key...),
		value:     v,
		updatedAt: now,
		staleAt:   now.Add(ttl),
	}
	c.store.Set(key.String(), e, ttl+c.Retain)
	return e
}
