package resources

import (
	"context"
	"fmt"
	"strings"

	"github.com/baseplate/tracker/internal/core/resource"
	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/core/validation"
	"github.com/baseplate/tracker/internal/core/workspace"
	"github.com/baseplate/tracker/internal/storage"
)

const teamKeyPattern = "^[A-Za-z][A-Za-z0-9]{1,4}$"

func teamConfig(p store.Provider) *resource.Config {
	return &resource.Config{
		Name:     "teams",
		Singular: "team",
		Kind:     resource.KindTeam,
		Model:    p.Model(storage.TableTeams),
		CreateSchema: validation.NewSchema(map[string]*validation.Property{
			"name":        validation.String(1, 64),
			"key":         validation.Pattern(teamKeyPattern),
			"description": validation.NullableString(2000),
			"private":     validation.Boolean(),
		}, "name", "key"),
		UpdateSchema: validation.NewSchema(map[string]*validation.Property{
			"name":        validation.String(1, 64),
			"description": validation.NullableString(2000),
			"private":     validation.Boolean(),
		}),
		Relations: []string{"members"},
		RelationMap: map[string]store.Include{
			"members": {Include: []store.Include{{Name: "user"}}},
		},
		Permissions: resource.Permissions{
			Create: canWrite,
			Update: canWriteItem,
			Delete: adminOnlyItem,
		},
		DefaultFilter: func(_ context.Context, wc *workspace.Context) (store.Filter, error) {
			return visibleTeams(wc), nil
		},
		SearchFields:   []string{"name", "key"},
		SortField:      "name",
		SortAscending:  true,
		SortableFields: []string{"key"},
	}
}

type teamHooks struct {
	*resource.BaseHooks
	members store.Model
}

func newTeamHooks(cfg *resource.Config, deps Deps) resource.Hooks {
	return &teamHooks{
		BaseHooks: &resource.BaseHooks{Config: cfg},
		members:   deps.Store.Model(storage.TableTeamMembers),
	}
}

func (h *teamHooks) BeforeCreate(_ context.Context, _ *workspace.Context, data store.Record) (store.Record, error) {
	data["key"] = strings.ToUpper(data.String("key"))
	if _, ok := data["private"].(bool); !ok {
		data["private"] = false
	}
	return data, nil
}

// AfterCreate makes the creator the first member, so a private team stays
// visible to the person who made it.
func (h *teamHooks) AfterCreate(ctx context.Context, wc *workspace.Context, created store.Record) (store.Record, error) {
	if _, err := h.members.Create(ctx, store.Record{
		"workspace_id": wc.Workspace.ID,
		"team_id":      created.ID(),
		"user_id":      wc.CallerID,
	}); err != nil {
		return nil, fmt.Errorf("failed to add team creator: %w", err)
	}
	return created, nil
}

func teamMemberConfig(p store.Provider) *resource.Config {
	return &resource.Config{
		Name:     "team_members",
		Singular: "team member",
		Kind:     resource.KindTeamMember,
		Model:    p.Model(storage.TableTeamMembers),
		CreateSchema: validation.NewSchema(map[string]*validation.Property{
			"team_id": validation.String(1, 64),
			"user_id": validation.String(1, 64),
		}, "team_id", "user_id"),
		Relations: []string{"user"},
		Permissions: resource.Permissions{
			Create: canWrite,
			Update: func(*workspace.Context, store.Record) bool { return false },
			Delete: canDeleteItem,
		},
		DefaultFilter: teamScoped(false),
	}
}

type teamMemberHooks struct {
	*resource.BaseHooks
	teams   store.Model
	members store.Model
}

func newTeamMemberHooks(cfg *resource.Config, deps Deps) resource.Hooks {
	return &teamMemberHooks{
		BaseHooks: &resource.BaseHooks{Config: cfg},
		teams:     deps.Store.Model(storage.TableTeams),
		members:   deps.Store.Model(storage.TableWorkspaceMembers),
	}
}

// BeforeCreate checks that the team is visible to the caller and the user
// belongs to the workspace.
func (h *teamMemberHooks) BeforeCreate(ctx context.Context, wc *workspace.Context, data store.Record) (store.Record, error) {
	team, err := findVisibleTeam(ctx, h.teams, wc, data.String("team_id"))
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, fieldError("team_id", "team not found")
	}

	member, err := h.members.FindFirst(ctx, store.Query{Where: store.All(
		inWorkspace(wc),
		store.Eq{Field: "user_id", Value: data.String("user_id")},
	)})
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fieldError("user_id", "user is not a member of this workspace")
	}
	return data, nil
}

func fieldError(field, message string) error {
	return &validation.ValidationErrors{Errors: []validation.ValidationError{{Field: field, Message: message}}}
}
