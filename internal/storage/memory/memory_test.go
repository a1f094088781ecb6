package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/storage"
)

func seed(t *testing.T) (*Store, context.Context) {
	t.Helper()
	ctx := context.Background()
	s := NewStore(storage.Tables)
	teams := s.Model(storage.TableTeams)
	for _, team := range []store.Record{
		{"id": "t1", "workspace_id": "w1", "name": "Engineering", "key": "ENG", "private": false},
		{"id": "t2", "workspace_id": "w1", "name": "Design", "key": "DES", "private": true},
		{"id": "t3", "workspace_id": "w2", "name": "Ops", "key": "OPS", "private": false},
	} {
		_, err := teams.Create(ctx, team)
		require.NoError(t, err)
	}
	_, err := s.Model(storage.TableTeamMembers).Create(ctx, store.Record{"workspace_id": "w1", "team_id": "t2", "user_id": "u1"})
	require.NoError(t, err)
	return s, ctx
}

func ids(rows []store.Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID()
	}
	return out
}

func TestCreate_FillsColumnsAndTimestamps(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.Tables)

	rec, err := s.Model(storage.TableLabels).Create(ctx, store.Record{"workspace_id": "w1", "name": "Bug", "bogus": "dropped"})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID())
	assert.Nil(t, rec["team_id"])
	assert.Contains(t, rec, "color")
	assert.NotContains(t, rec, "bogus")
	assert.IsType(t, time.Time{}, rec["created_at"])
	assert.Equal(t, rec["created_at"], rec["updated_at"])
}

func TestCreate_UniqueConflict(t *testing.T) {
	s, ctx := seed(t)
	teams := s.Model(storage.TableTeams)

	_, err := teams.Create(ctx, store.Record{"workspace_id": "w1", "name": "Other", "key": "ENG"})
	assert.ErrorIs(t, err, store.ErrConflict)

	// Same key in another workspace is fine.
	_, err = teams.Create(ctx, store.Record{"workspace_id": "w2", "name": "Eng", "key": "ENG"})
	assert.NoError(t, err)
}

func TestFilters(t *testing.T) {
	s, ctx := seed(t)
	teams := s.Model(storage.TableTeams)

	cases := []struct {
		name  string
		where store.Filter
		want  []string
	}{
		{"nil matches all", nil, []string{"t1", "t2", "t3"}},
		{"eq", store.Eq{Field: "workspace_id", Value: "w1"}, []string{"t1", "t2"}},
		{"eq nil", store.Eq{Field: "description", Value: nil}, []string{"t1", "t2", "t3"}},
		{"in", store.In{Field: "key", Values: []any{"OPS", "DES"}}, []string{"t2", "t3"}},
		{"empty in", store.In{Field: "key"}, []string{}},
		{"contains ignores case", store.Contains{Field: "name", Value: "GIN"}, []string{"t1"}},
		{"not", store.Not{Filter: store.Eq{Field: "private", Value: true}}, []string{"t1", "t3"}},
		{"empty or", store.Or{}, []string{}},
		{"empty and", store.And{}, []string{"t1", "t2", "t3"}},
		{"related", store.Related{
			Field: "id", Table: storage.TableTeamMembers, Column: "team_id",
			Where: store.Eq{Field: "user_id", Value: "u1"},
		}, []string{"t2"}},
		{"visible teams", store.All(
			store.Eq{Field: "workspace_id", Value: "w1"},
			store.Any(
				store.Eq{Field: "private", Value: false},
				store.Related{Field: "id", Table: storage.TableTeamMembers, Column: "team_id", Where: store.Eq{Field: "user_id", Value: "u1"}},
			),
		), []string{"t1", "t2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := teams.FindMany(ctx, store.Query{Where: tc.where, OrderBy: []store.Order{{Field: "id"}}})
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(rows))

			n, err := teams.Count(ctx, tc.where)
			require.NoError(t, err)
			assert.Equal(t, len(tc.want), n)
		})
	}
}

func TestUnknownFieldIsAnError(t *testing.T) {
	s, ctx := seed(t)
	teams := s.Model(storage.TableTeams)

	_, err := teams.FindMany(ctx, store.Query{Where: store.Eq{Field: "nope", Value: 1}})
	assert.ErrorIs(t, err, store.ErrUnknownField)

	_, err = teams.FindMany(ctx, store.Query{OrderBy: []store.Order{{Field: "nope"}}})
	assert.ErrorIs(t, err, store.ErrUnknownField)

	_, err = teams.FindMany(ctx, store.Query{Include: []store.Include{{Name: "nope"}}})
	assert.ErrorIs(t, err, store.ErrUnknownRelation)
}

func TestOrderingAndPaging(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.Tables)
	states := s.Model(storage.TableWorkflowStates)
	for i, pos := range []any{2, nil, 0.0, 1} {
		_, err := states.Create(ctx, store.Record{"id": string(rune('a' + i)), "workspace_id": "w1", "name": "s", "type": "started", "position": pos})
		require.NoError(t, err)
	}

	asc, err := states.FindMany(ctx, store.Query{OrderBy: []store.Order{{Field: "position"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids(asc), "nulls first ascending; ints and floats compare numerically")

	desc, err := states.FindMany(ctx, store.Query{OrderBy: []store.Order{{Field: "position", Desc: true}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d", "c", "b"}, ids(desc))

	page, err := states.FindMany(ctx, store.Query{OrderBy: []store.Order{{Field: "position"}}, Skip: 1, Take: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, ids(page))

	past, err := states.FindMany(ctx, store.Query{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, past)

	first, err := states.FindFirst(ctx, store.Query{Where: store.Eq{Field: "id", Value: "zz"}})
	require.NoError(t, err)
	assert.Nil(t, first)
}

func TestCreationOrderSurvivesBackToBackWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.Tables)
	labels := s.Model(storage.TableLabels)
	for _, id := range []string{"l1", "l2", "l3"} {
		_, err := labels.Create(ctx, store.Record{"id": id, "workspace_id": "w1", "name": id})
		require.NoError(t, err)
	}

	rows, err := labels.FindMany(ctx, store.Query{OrderBy: []store.Order{{Field: "created_at", Desc: true}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"l3", "l2", "l1"}, ids(rows))
}

func TestUpdateAndDelete(t *testing.T) {
	s, ctx := seed(t)
	teams := s.Model(storage.TableTeams)

	before, err := teams.FindFirst(ctx, store.Query{Where: store.Eq{Field: "id", Value: "t1"}})
	require.NoError(t, err)

	updated, err := teams.Update(ctx, "t1", store.Record{"name": "Platform", "id": "ignored", "created_at": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "t1", updated.ID())
	assert.Equal(t, "Platform", updated["name"])
	assert.Equal(t, before["created_at"], updated["created_at"])
	assert.True(t, updated["updated_at"].(time.Time).After(before["updated_at"].(time.Time)))

	_, err = teams.Update(ctx, "t1", store.Record{"key": "DES"})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = teams.Update(ctx, "missing", store.Record{"name": "x"})
	assert.ErrorIs(t, err, store.ErrNoRecord)

	require.NoError(t, teams.Delete(ctx, "t1"))
	assert.ErrorIs(t, teams.Delete(ctx, "t1"), store.ErrNoRecord)
	n, _ := teams.Count(ctx, nil)
	assert.Equal(t, 2, n)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s, ctx := seed(t)
	teams := s.Model(storage.TableTeams)

	rec, err := teams.FindFirst(ctx, store.Query{Where: store.Eq{Field: "id", Value: "t1"}})
	require.NoError(t, err)
	rec["name"] = "mutated"

	again, _ := teams.FindFirst(ctx, store.Query{Where: store.Eq{Field: "id", Value: "t1"}})
	assert.Equal(t, "Engineering", again["name"])
}

func TestIncludes(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.Tables)
	_, err := s.Model(storage.TableUsers).Create(ctx, store.Record{"id": "u1", "email": "ada@example.com", "name": "Ada", "password_hash": "secret"})
	require.NoError(t, err)
	members := s.Model(storage.TableWorkspaceMembers)
	_, err = members.Create(ctx, store.Record{"id": "m1", "workspace_id": "w1", "user_id": "u1", "role": "ADMIN"})
	require.NoError(t, err)
	_, err = members.Create(ctx, store.Record{"id": "m2", "workspace_id": "w1", "user_id": "gone", "role": "MEMBER"})
	require.NoError(t, err)

	rows, err := members.FindMany(ctx, store.Query{
		Include: []store.Include{{Name: "user"}},
		OrderBy: []store.Order{{Field: "id"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	user := rows[0]["user"].(store.Record)
	assert.Equal(t, "Ada", user["name"])
	assert.NotContains(t, user, "password_hash", "hidden columns never leak through relations")
	assert.Nil(t, rows[1]["user"])

	// The owning table still reads its hidden column.
	own, err := s.Model(storage.TableUsers).FindFirst(ctx, store.Query{Where: store.Eq{Field: "id", Value: "u1"}})
	require.NoError(t, err)
	assert.Equal(t, "secret", own["password_hash"])

	_, err = s.Model(storage.TableWorkspaces).Create(ctx, store.Record{"id": "w1", "slug": "acme", "name": "Acme"})
	require.NoError(t, err)
	ws, err := s.Model(storage.TableWorkspaces).FindFirst(ctx, store.Query{Include: []store.Include{{
		Name:  "members",
		Where: store.Eq{Field: "role", Value: "ADMIN"},
	}}})
	require.NoError(t, err)
	assert.Len(t, ws["members"], 1)
}

func TestNext_IsPerScopeAndConcurrentSafe(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.Tables)

	var wg sync.WaitGroup
	seen := make(chan int64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.Next(ctx, "work_items:t1")
			assert.NoError(t, err)
			seen <- n
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for n := range seen {
		unique[n] = true
	}
	assert.Len(t, unique, 100)

	n, err := s.Next(ctx, "work_items:t2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestModel_PanicsOnUndeclaredTable(t *testing.T) {
	assert.Panics(t, func() { NewStore(storage.Tables).Model("nope") })
}
