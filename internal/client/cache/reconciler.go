package cache

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// PlaceholderPrefix marks ids assigned locally before the server answers.
const PlaceholderPrefix = "temp-"

// Transform rewrites a cached list speculatively. It receives a private copy.
type Transform func([]Item) []Item

// Mutation is one optimistic write against the list cached under Key.
type Mutation struct {
	Key       string
	Transform Transform
	Remote    func(ctx context.Context) error
}

type Reconciler struct {
	cache *Cache
}

func NewReconciler(cache *Cache) *Reconciler {
	return &Reconciler{cache: cache}
}

func (r *Reconciler) Cache() *Cache {
	return r.cache
}

// Mutate applies m.Transform immediately and then waits for m.Remote. On
// success every key under the resource prefix is refetched; on failure the
// list is put back exactly as it was and the remote error is returned.
func (r *Reconciler) Mutate(ctx context.Context, m Mutation) error {
	prefix := Prefix(m.Key)
	r.cache.CancelFetches(prefix)

	before, present := r.cache.snapshot(m.Key)
	if m.Transform != nil {
		r.cache.apply(m.Key, m.Transform)
	}

	if err := m.Remote(ctx); err != nil {
		r.cache.restore(m.Key, before, present)
		return err
	}

	// The write landed; a failed refetch only leaves keys stale.
	_ = r.cache.Invalidate(ctx, prefix)
	return nil
}

// IsPlaceholder reports whether id was assigned by AppendPlaceholder.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// AppendPlaceholder adds data as a new item with a temporary id.
func AppendPlaceholder(data Item) Transform {
	return func(items []Item) []Item {
		item := cloneValue(data).(Item)
		if item == nil {
			item = Item{}
		}
		item["id"] = PlaceholderPrefix + uuid.NewString()
		return append(items, item)
	}
}

// PatchByID merges patch into the item whose id matches.
func PatchByID(id string, patch Item) Transform {
	return func(items []Item) []Item {
		for _, item := range items {
			if item["id"] != id {
				continue
			}
			for k, v := range patch {
				item[k] = cloneValue(v)
			}
		}
		return items
	}
}

// RemoveByID drops every item whose id is listed.
func RemoveByID(ids ...string) Transform {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	return func(items []Item) []Item {
		kept := items[:0]
		for _, item := range items {
			id, _ := item["id"].(string)
			if _, ok := drop[id]; ok {
				continue
			}
			kept = append(kept, item)
		}
		return kept
	}
}
