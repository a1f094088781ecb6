package resources

import (
	"context"
	"fmt"

	"github.com/baseplate/tracker/internal/core/resource"
	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/core/validation"
	"github.com/baseplate/tracker/internal/core/workspace"
	"github.com/baseplate/tracker/internal/storage"
)

var stateTypes = []string{"backlog", "unstarted", "started", "completed", "canceled"}

func workflowStateConfig(p store.Provider) *resource.Config {
	return &resource.Config{
		Name:     "workflow_states",
		Singular: "workflow state",
		Kind:     resource.KindWorkflowState,
		Model:    p.Model(storage.TableWorkflowStates),
		CreateSchema: validation.NewSchema(map[string]*validation.Property{
			"name":       validation.String(1, 64),
			"type":       validation.Enum(stateTypes...),
			"color":      validation.NullableString(32),
			"position":   validation.Integer(0, 1000),
			"is_default": validation.Boolean(),
			"team_id":    validation.NullableString(64),
		}, "name", "type"),
		UpdateSchema: validation.NewSchema(map[string]*validation.Property{
			"name":       validation.String(1, 64),
			"type":       validation.Enum(stateTypes...),
			"color":      validation.NullableString(32),
			"position":   validation.Integer(0, 1000),
			"is_default": validation.Boolean(),
		}),
		Relations: []string{"team"},
		Permissions: resource.Permissions{
			Create: adminOnly,
			Update: adminOnlyItem,
			Delete: adminOnlyItem,
		},
		DefaultFilter:  teamScoped(true),
		SearchFields:   []string{"name"},
		SortField:      "position",
		SortAscending:  true,
		SortableFields: []string{"name", "type"},
	}
}

type stateHooks struct {
	*resource.BaseHooks
	items store.Model
	refs  *references
}

func newStateHooks(cfg *resource.Config, deps Deps) resource.Hooks {
	return &stateHooks{
		BaseHooks: &resource.BaseHooks{Config: cfg},
		items:     deps.Store.Model(storage.TableWorkItems),
		refs:      newReferences(deps.Store),
	}
}

func (h *stateHooks) BeforeCreate(ctx context.Context, wc *workspace.Context, data store.Record) (store.Record, error) {
	if err := h.refs.check(ctx, wc, data, "team_id"); err != nil {
		return nil, err
	}
	if _, ok := data["is_default"].(bool); !ok {
		data["is_default"] = false
	}
	if _, ok := data["position"]; !ok {
		n, err := h.Config.Model.Count(ctx, inWorkspace(wc))
		if err != nil {
			return nil, err
		}
		data["position"] = n
	}
	if data["is_default"] == true {
		if err := h.clearDefault(ctx, wc, data.String("team_id"), ""); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (h *stateHooks) BeforeUpdate(ctx context.Context, wc *workspace.Context, existing, input store.Record) (store.Record, error) {
	data, err := h.BaseHooks.BeforeUpdate(ctx, wc, existing, input)
	if err != nil {
		return nil, err
	}
	delete(data, "team_id")
	if data["is_default"] == true {
		if err := h.clearDefault(ctx, wc, existing.String("team_id"), existing.ID()); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// BeforeDelete refuses while work items still sit in the state.
func (h *stateHooks) BeforeDelete(ctx context.Context, wc *workspace.Context, existing store.Record) error {
	n, err := h.items.Count(ctx, store.All(
		inWorkspace(wc),
		store.Eq{Field: "state_id", Value: existing.ID()},
	))
	if err != nil {
		return err
	}
	if n > 0 {
		return resource.Blocked(n, "cannot delete workflow state %q: %d work items still use it", existing.String("name"), n)
	}
	return nil
}

// clearDefault unsets is_default on the other states of the same team, so
// each team has at most one default. An empty teamID means the
// workspace-wide states.
func (h *stateHooks) clearDefault(ctx context.Context, wc *workspace.Context, teamID, keep string) error {
	var team any
	if teamID != "" {
		team = teamID
	}
	current, err := h.Config.Model.FindMany(ctx, store.Query{Where: store.All(
		inWorkspace(wc),
		store.Eq{Field: "team_id", Value: team},
		store.Eq{Field: "is_default", Value: true},
	)})
	if err != nil {
		return err
	}
	for _, state := range current {
		if state.ID() == keep {
			continue
		}
		if _, err := h.Config.Model.Update(ctx, state.ID(), store.Record{"is_default": false}); err != nil {
			return fmt.Errorf("failed to clear default state: %w", err)
		}
	}
	return nil
}
