// Package cache holds list-shaped query results on the client side and keeps
// them coherent with optimistic writes.
//
// Keys start with the resource name, optionally followed by "?" and the
// query that produced the list ("work_items", "work_items?page=2"). Every
// key sharing a resource name belongs to the same prefix and is cancelled or
// invalidated together.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Item is one record as the action endpoint returns it.
type Item = map[string]any

// ErrFetchSuperseded is returned by Fetch when a mutation cancelled the
// fetch before its result could be stored.
var ErrFetchSuperseded = errors.New("fetch superseded by a local mutation")

// Loader fetches the authoritative list for key.
type Loader func(ctx context.Context, key string) ([]Item, error)

type entry struct {
	items    []Item
	stale    bool
	inflight map[uint64]context.CancelFunc
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	load    Loader
	nextID  uint64
	logger  zerolog.Logger
}

func New(load Loader, logger zerolog.Logger) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		load:    load,
		logger:  logger.With().Str("component", "cache").Logger(),
	}
}

// Prefix returns the resource part of key.
func Prefix(key string) string {
	name, _, _ := strings.Cut(key, "?")
	return name
}

func underPrefix(key, prefix string) bool {
	return key == prefix || strings.HasPrefix(key, prefix+"?")
}

func (c *Cache) entry(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{inflight: make(map[uint64]context.CancelFunc)}
		c.entries[key] = e
	}
	return e
}

// Get returns a copy of the cached list and whether the key is present.
func (c *Cache) Get(key string) ([]Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.items == nil {
		return nil, false
	}
	return cloneItems(e.items), true
}

// Stale reports whether key was invalidated and not yet refetched.
func (c *Cache) Stale(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.stale
}

// Set replaces the list stored under key.
func (c *Cache) Set(key string, items []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(key)
	e.items = cloneItems(items)
	e.stale = false
}

// Keys lists the cached keys under prefix.
func (c *Cache) Keys(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	for key, e := range c.entries {
		if underPrefix(key, prefix) && e.items != nil {
			keys = append(keys, key)
		}
	}
	return keys
}

// Fetch loads key and stores the result unless CancelFetches ran while the
// load was in flight.
func (c *Cache) Fetch(ctx context.Context, key string) ([]Item, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.entry(key).inflight[id] = cancel
	c.mu.Unlock()

	items, err := c.load(ctx, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(key)
	if _, live := e.inflight[id]; !live {
		return nil, ErrFetchSuperseded
	}
	delete(e.inflight, id)
	if err != nil {
		return nil, err
	}
	e.items = cloneItems(items)
	e.stale = false
	return cloneItems(items), nil
}

// CancelFetches aborts every in-flight fetch under prefix. Their results are
// discarded even if the loader ignores cancellation.
func (c *Cache) CancelFetches(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if !underPrefix(key, prefix) {
			continue
		}
		for id, cancel := range e.inflight {
			cancel()
			delete(e.inflight, id)
		}
	}
}

// Invalidate marks every key under prefix stale and refetches it. Keys whose
// refetch fails stay stale.
func (c *Cache) Invalidate(ctx context.Context, prefix string) error {
	keys := c.Keys(prefix)

	c.mu.Lock()
	for _, key := range keys {
		c.entries[key].stale = true
	}
	c.mu.Unlock()

	var errs []error
	for _, key := range keys {
		if _, err := c.Fetch(ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("refetch failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// snapshot returns a deep copy of the list under key.
func (c *Cache) snapshot(key string) ([]Item, bool) {
	return c.Get(key)
}

func (c *Cache) apply(key string, transform func([]Item) []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(key)
	e.items = transform(cloneItems(e.items))
	if e.items == nil {
		e.items = []Item{}
	}
}

func (c *Cache) restore(key string, items []Item, present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(key)
	if !present {
		e.items = nil
		return
	}
	e.items = cloneItems(items)
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = cloneValue(item).(Item)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
