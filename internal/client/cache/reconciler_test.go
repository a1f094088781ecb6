package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer is the authoritative list the loader reads from.
type fakeServer struct {
	mu    sync.Mutex
	items []Item
	loads int
}

func (s *fakeServer) load(_ context.Context, _ string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return cloneItems(s.items), nil
}

func (s *fakeServer) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = RemoveByID(id)(s.items)
}

func seeded() (*fakeServer, *Cache) {
	srv := &fakeServer{items: []Item{
		{"id": "a", "name": "Alpha", "tags": []any{"x"}},
		{"id": "b", "name": "Beta"},
	}}
	c := New(srv.load, zerolog.Nop())
	c.Set("labels", srv.items)
	return srv, c
}

func TestMutate_FailedCreateRestoresExactSnapshot(t *testing.T) {
	_, c := seeded()
	before, _ := c.Get("labels")
	r := NewReconciler(c)

	var during []Item
	err := r.Mutate(context.Background(), Mutation{
		Key:       "labels",
		Transform: AppendPlaceholder(Item{"name": "Gamma"}),
		Remote: func(context.Context) error {
			during, _ = c.Get("labels")
			return errors.New("boom")
		},
	})

	require.EqualError(t, err, "boom")
	require.Len(t, during, 3)
	assert.True(t, IsPlaceholder(during[2]["id"].(string)))
	assert.Equal(t, "Gamma", during[2]["name"])

	after, ok := c.Get("labels")
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestMutate_FailureOnUncachedKeyLeavesItUncached(t *testing.T) {
	srv := &fakeServer{}
	c := New(srv.load, zerolog.Nop())

	err := NewReconciler(c).Mutate(context.Background(), Mutation{
		Key:       "labels",
		Transform: AppendPlaceholder(Item{"name": "Gamma"}),
		Remote:    func(context.Context) error { return errors.New("boom") },
	})

	require.Error(t, err)
	_, ok := c.Get("labels")
	assert.False(t, ok)
}

func TestMutate_SuccessfulDeleteStaysAbsent(t *testing.T) {
	srv, c := seeded()
	r := NewReconciler(c)

	err := r.Mutate(context.Background(), Mutation{
		Key:       "labels",
		Transform: RemoveByID("a"),
		Remote: func(context.Context) error {
			items, _ := c.Get("labels")
			for _, item := range items {
				assert.NotEqual(t, "a", item["id"], "removed before confirmation")
			}
			srv.remove("a")
			return nil
		},
	})
	require.NoError(t, err)

	items, ok := c.Get("labels")
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0]["id"])
	assert.False(t, c.Stale("labels"))
	assert.Equal(t, 1, srv.loads)
}

func TestMutate_SuccessInvalidatesWholePrefix(t *testing.T) {
	srv, c := seeded()
	c.Set("labels?page=2", nil)
	c.Set("labels?page=3", []Item{})
	c.Set("projects", []Item{{"id": "p"}})

	err := NewReconciler(c).Mutate(context.Background(), Mutation{
		Key:       "labels",
		Transform: PatchByID("b", Item{"name": "Bravo"}),
		Remote:    func(context.Context) error { return nil },
	})
	require.NoError(t, err)

	// labels and labels?page=3 are refetched; page=2 was never populated and
	// projects is another resource.
	assert.Equal(t, 2, srv.loads)
	projects, _ := c.Get("projects")
	assert.Equal(t, []Item{{"id": "p"}}, projects)
}

func TestMutate_CancelsInFlightRefetch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	stale := []Item{{"id": "a", "name": "Old"}}

	c := New(func(ctx context.Context, key string) ([]Item, error) {
		close(started)
		<-release
		// Ignores ctx on purpose: the result must still be discarded.
		return stale, nil
	}, zerolog.Nop())
	c.Set("labels", []Item{{"id": "a", "name": "Old"}})

	fetchErr := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), "labels?page=1")
		fetchErr <- err
	}()
	<-started

	r := NewReconciler(c)
	r.cache.CancelFetches("labels")
	r.cache.apply("labels", PatchByID("a", Item{"name": "New"}))
	close(release)

	assert.ErrorIs(t, <-fetchErr, ErrFetchSuperseded)
	_, ok := c.Get("labels?page=1")
	assert.False(t, ok, "superseded fetch must not populate the cache")

	items, _ := c.Get("labels")
	assert.Equal(t, "New", items[0]["name"])
}

func TestTransforms(t *testing.T) {
	items := []Item{{"id": "a", "name": "Alpha"}, {"id": "b", "name": "Beta"}, {"id": "c"}}

	patched := PatchByID("b", Item{"name": "Bravo", "color": "#fff"})(cloneItems(items))
	assert.Equal(t, "Bravo", patched[1]["name"])
	assert.Equal(t, "#fff", patched[1]["color"])
	assert.Equal(t, "Alpha", patched[0]["name"])

	removed := RemoveByID("a", "c")(cloneItems(items))
	require.Len(t, removed, 1)
	assert.Equal(t, "b", removed[0]["id"])

	data := Item{"name": "New"}
	appended := AppendPlaceholder(data)(cloneItems(items))
	require.Len(t, appended, 4)
	assert.NotContains(t, data, "id", "input data must not be mutated")
	assert.False(t, IsPlaceholder("a"))
}

func TestGetReturnsCopies(t *testing.T) {
	_, c := seeded()
	items, _ := c.Get("labels")
	items[0]["name"] = "mutated"
	items[0]["tags"].([]any)[0] = "y"

	again, _ := c.Get("labels")
	assert.Equal(t, "Alpha", again[0]["name"])
	assert.Equal(t, []any{"x"}, again[0]["tags"])
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "work_items", Prefix("work_items?page=2&search=x"))
	assert.Equal(t, "labels", Prefix("labels"))
	assert.True(t, underPrefix("labels?page=2", "labels"))
	assert.False(t, underPrefix("labels_archive", "labels"))
}
