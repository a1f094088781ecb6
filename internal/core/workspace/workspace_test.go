package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/storage"
	"github.com/baseplate/tracker/internal/storage/memory"
)

func setup(t *testing.T) (*memory.Store, *Service, *Resolver) {
	t.Helper()
	st := memory.NewStore(storage.Tables)
	return st, NewService(st), NewResolver(st)
}

func TestCreate_SeedsOwnerAndStates(t *testing.T) {
	st, svc, resolver := setup(t)
	ctx := context.Background()

	ws, err := svc.Create(ctx, "owner", &CreateWorkspaceRequest{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)

	wc, err := resolver.Resolve(ctx, "owner", "acme")
	require.NoError(t, err)
	assert.Equal(t, ws.ID, wc.Workspace.ID)
	assert.Equal(t, RoleAdmin, wc.Role)
	assert.True(t, wc.Can(PermWorkspaceManage))

	states, err := st.Model(storage.TableWorkflowStates).FindMany(ctx, store.Query{
		Where:   store.Eq{Field: "workspace_id", Value: ws.ID},
		OrderBy: []store.Order{{Field: "position"}},
	})
	require.NoError(t, err)
	require.Len(t, states, len(DefaultStates))

	defaults := 0
	for _, s := range states {
		if s["is_default"] == true {
			defaults++
			assert.Equal(t, "Todo", s["name"])
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestCreate_DuplicateAndInvalidSlug(t *testing.T) {
	_, svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "owner", &CreateWorkspaceRequest{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "other", &CreateWorkspaceRequest{Name: "Acme 2", Slug: "acme"})
	assert.ErrorIs(t, err, ErrWorkspaceExists)

	_, err = svc.Create(ctx, "other", &CreateWorkspaceRequest{Name: "Bad", Slug: "Not A Slug"})
	assert.ErrorIs(t, err, ErrInvalidSlug)
}

func TestResolve_NonEnumerable(t *testing.T) {
	_, svc, resolver := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "owner", &CreateWorkspaceRequest{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)

	_, errMissing := resolver.Resolve(ctx, "stranger", "does-not-exist")
	_, errDenied := resolver.Resolve(ctx, "stranger", "acme")

	assert.ErrorIs(t, errMissing, ErrNotFound)
	assert.ErrorIs(t, errDenied, ErrNotFound)
	assert.Equal(t, errMissing.Error(), errDenied.Error())
}

func TestResolve_Unauthenticated(t *testing.T) {
	_, _, resolver := setup(t)

	_, err := resolver.Resolve(context.Background(), "", "acme")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolveItem_ThreadsItemID(t *testing.T) {
	_, svc, resolver := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "owner", &CreateWorkspaceRequest{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)

	wc, err := resolver.ResolveItem(ctx, "owner", "acme", "item-1")
	require.NoError(t, err)
	assert.Equal(t, "item-1", wc.ItemID)
}

func TestListForUser(t *testing.T) {
	_, svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "owner", &CreateWorkspaceRequest{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "owner", &CreateWorkspaceRequest{Name: "Globex", Slug: "globex"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "someone", &CreateWorkspaceRequest{Name: "Initech", Slug: "initech"})
	require.NoError(t, err)

	list, err := svc.ListForUser(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "acme", list[0].Workspace.Slug)
	assert.Equal(t, "globex", list[1].Workspace.Slug)
	assert.Equal(t, RoleAdmin, list[0].Role)
}

func TestUpdateDelete_RequireManage(t *testing.T) {
	_, svc, resolver := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "owner", &CreateWorkspaceRequest{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)
	wc, err := resolver.Resolve(ctx, "owner", "acme")
	require.NoError(t, err)

	member := &Context{CallerID: "m", Role: RoleMember, Workspace: wc.Workspace}
	_, err = svc.Update(ctx, member, &UpdateWorkspaceRequest{Name: "Hacked"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, member), ErrForbidden)

	updated, err := svc.Update(ctx, wc, &UpdateWorkspaceRequest{Name: "Acme Corp"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", updated.Name)

	require.NoError(t, svc.Delete(ctx, wc))
	_, err = resolver.Resolve(ctx, "owner", "acme")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRolePermissions(t *testing.T) {
	guest := &Context{Role: RoleGuest}
	assert.True(t, guest.Can(PermResourceRead))
	assert.False(t, guest.Can(PermResourceWrite))

	member := &Context{Role: RoleMember}
	assert.True(t, member.Can(PermResourceDelete))
	assert.False(t, member.Can(PermMemberManage))

	assert.False(t, Role("OWNER").Valid())
	assert.Nil(t, Role("OWNER").Permissions())
}
