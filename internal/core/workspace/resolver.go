// Package workspace resolves callers into tenant-scoped request contexts
// and manages the workspaces themselves.
package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/storage"
)

var (
	// ErrNotFound covers both a missing workspace and one the caller is not
	// a member of. Callers cannot tell the two apart.
	ErrNotFound = errors.New("not found")

	ErrUnauthenticated = errors.New("unauthenticated")
)

type Resolver struct {
	workspaces store.Model
	members    store.Model
}

func NewResolver(p store.Provider) *Resolver {
	return &Resolver{
		workspaces: p.Model(storage.TableWorkspaces),
		members:    p.Model(storage.TableWorkspaceMembers),
	}
}

// Resolve looks up the workspace by its slug and the caller's membership in
// it. Only the caller's own membership row is read.
func (r *Resolver) Resolve(ctx context.Context, callerID, handle string) (*Context, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	if handle == "" {
		return nil, ErrNotFound
	}

	ws, err := r.workspaces.FindFirst(ctx, store.Query{Where: store.Eq{Field: "slug", Value: handle}})
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace: %w", err)
	}
	if ws == nil {
		return nil, ErrNotFound
	}

	membership, err := r.members.FindFirst(ctx, store.Query{Where: store.All(
		store.Eq{Field: "workspace_id", Value: ws.ID()},
		store.Eq{Field: "user_id", Value: callerID},
	)})
	if err != nil {
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}
	if membership == nil {
		return nil, ErrNotFound
	}

	return &Context{
		CallerID: callerID,
		Role:     Role(membership.String("role")),
		Workspace: Workspace{
			ID:   ws.ID(),
			Slug: ws.String("slug"),
			Name: ws.String("name"),
		},
	}, nil
}

// ResolveItem is Resolve plus the path item id.
func (r *Resolver) ResolveItem(ctx context.Context, callerID, handle, itemID string) (*Context, error) {
	wc, err := r.Resolve(ctx, callerID, handle)
	if err != nil {
		return nil, err
	}
	wc.ItemID = itemID
	return wc, nil
}
