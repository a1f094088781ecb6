package resources

import (
	"context"
	"fmt"
	"slices"

	"github.com/baseplate/tracker/internal/core/resource"
	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/core/validation"
	"github.com/baseplate/tracker/internal/core/workspace"
	"github.com/baseplate/tracker/internal/storage"
)

var roles = []string{string(workspace.RoleAdmin), string(workspace.RoleMember), string(workspace.RoleGuest)}

// accountFields are the update fields owned by the user account rather than
// the membership row.
var accountFields = []string{"name"}

func memberConfig(p store.Provider) *resource.Config {
	return &resource.Config{
		Name:     "members",
		Singular: "member",
		Kind:     resource.KindMember,
		Model:    p.Model(storage.TableWorkspaceMembers),
		CreateSchema: validation.NewSchema(map[string]*validation.Property{
			"email": validation.Email(),
			"name":  validation.String(1, 128),
			"role":  validation.Enum(roles...),
		}, "email"),
		UpdateSchema: validation.NewSchema(map[string]*validation.Property{
			"name": validation.String(1, 128),
			"role": validation.Enum(roles...),
		}),
		Relations: []string{"user"},
		Permissions: resource.Permissions{
			Create: func(wc *workspace.Context) bool { return wc.Can(workspace.PermMemberManage) },
			Update: adminOrSelf,
			Delete: adminOrSelf,
		},
		SortField:      "created_at",
		SortAscending:  true,
		SortableFields: []string{"role"},
	}
}

func adminOrSelf(wc *workspace.Context, item store.Record) bool {
	return wc.Can(workspace.PermMemberManage) || item.String("user_id") == wc.CallerID
}

type memberHooks struct {
	*resource.BaseHooks
	users    store.Model
	accounts Accounts
}

func newMemberHooks(cfg *resource.Config, deps Deps) resource.Hooks {
	return &memberHooks{
		BaseHooks: &resource.BaseHooks{Config: cfg},
		users:     deps.Store.Model(storage.TableUsers),
		accounts:  deps.Accounts,
	}
}

// BeforeCreate turns the invited email into an account, creating one when
// needed, and refuses a second membership for the same account.
func (h *memberHooks) BeforeCreate(ctx context.Context, wc *workspace.Context, data store.Record) (store.Record, error) {
	user, err := h.accounts.FindOrCreateByEmail(ctx, data.String("email"), data.String("name"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}

	existing, err := h.Config.Model.FindFirst(ctx, store.Query{Where: store.All(
		inWorkspace(wc),
		store.Eq{Field: "user_id", Value: user.ID},
	)})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, resource.Rejected("%s is already a member of this workspace", user.Email)
	}

	role := data.String("role")
	if role == "" {
		role = string(workspace.RoleMember)
	}
	return store.Record{
		"workspace_id": wc.Workspace.ID,
		"user_id":      user.ID,
		"role":         role,
	}, nil
}

// AfterCreate hands out the claim token when the member still has to
// register. The token appears in this response only.
func (h *memberHooks) AfterCreate(ctx context.Context, _ *workspace.Context, created store.Record) (store.Record, error) {
	token, err := h.accounts.IssueInviteToken(ctx, created.String("user_id"))
	if err != nil {
		return nil, fmt.Errorf("failed to issue invite: %w", err)
	}
	if token != "" {
		created["invite_token"] = token
	}
	return created, nil
}

func (h *memberHooks) BeforeUpdate(ctx context.Context, wc *workspace.Context, existing, input store.Record) (store.Record, error) {
	data, err := h.BaseHooks.BeforeUpdate(ctx, wc, existing, input)
	if err != nil {
		return nil, err
	}
	delete(data, "user_id")

	role, changing := data["role"].(string)
	if !changing || role == existing.String("role") {
		delete(data, "role")
		return data, nil
	}
	if !wc.Can(workspace.PermMemberManage) {
		return nil, resource.ErrForbidden
	}
	if existing.String("role") == string(workspace.RoleAdmin) {
		if err := h.keepAnAdmin(ctx, wc); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// PersistUpdate splits the payload between the account and the membership
// and writes each side at most once.
func (h *memberHooks) PersistUpdate(ctx context.Context, _ *workspace.Context, existing, data store.Record) (store.Record, error) {
	account, membership := partition(data, accountFields)

	updated := existing
	if len(membership) > 0 {
		var err error
		updated, err = h.Config.Model.Update(ctx, existing.ID(), membership)
		if err != nil {
			return nil, err
		}
	}

	var user store.Record
	var err error
	if len(account) > 0 {
		user, err = h.users.Update(ctx, existing.String("user_id"), account)
	} else {
		user, err = h.users.FindFirst(ctx, store.Query{Where: store.Eq{Field: "id", Value: existing.String("user_id")}})
	}
	if err != nil {
		return nil, err
	}

	merged := updated.Clone()
	if user != nil {
		merged["email"] = user["email"]
		merged["name"] = user["name"]
	}
	return merged, nil
}

func (h *memberHooks) BeforeDelete(ctx context.Context, wc *workspace.Context, existing store.Record) error {
	if existing.String("role") != string(workspace.RoleAdmin) {
		return nil
	}
	return h.keepAnAdmin(ctx, wc)
}

// keepAnAdmin refuses to remove the workspace's last admin.
func (h *memberHooks) keepAnAdmin(ctx context.Context, wc *workspace.Context) error {
	n, err := h.Config.Model.Count(ctx, store.All(
		inWorkspace(wc),
		store.Eq{Field: "role", Value: string(workspace.RoleAdmin)},
	))
	if err != nil {
		return err
	}
	if n <= 1 {
		return resource.Rejected("a workspace needs at least one admin")
	}
	return nil
}

// partition splits data into the listed fields and the rest.
func partition(data store.Record, fields []string) (picked, rest store.Record) {
	picked, rest = store.Record{}, store.Record{}
	for k, v := range data {
		if slices.Contains(fields, k) {
			picked[k] = v
		} else {
			rest[k] = v
		}
	}
	return picked, rest
}
