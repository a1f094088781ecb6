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

var workItemTypes = []string{"issue", "bug", "feature", "task"}

func workItemConfig(p store.Provider) *resource.Config {
	return &resource.Config{
		Name:     "work_items",
		Singular: "work item",
		Kind:     resource.KindWorkItem,
		Model:    p.Model(storage.TableWorkItems),
		CreateSchema: validation.NewSchema(map[string]*validation.Property{
			"title":       validation.String(1, 255),
			"description": validation.NullableString(50000),
			"team_id":     validation.NullableString(64),
			"state_id":    validation.NullableString(64),
			"parent_id":   validation.NullableString(64),
			"project_id":  validation.NullableString(64),
			"assignee_id": validation.NullableString(64),
			"priority":    validation.Integer(0, 4),
			"type":        validation.Enum(workItemTypes...),
		}, "title"),
		UpdateSchema: validation.NewSchema(map[string]*validation.Property{
			"title":       validation.String(1, 255),
			"description": validation.NullableString(50000),
			"state_id":    validation.NullableString(64),
			"parent_id":   validation.NullableString(64),
			"project_id":  validation.NullableString(64),
			"assignee_id": validation.NullableString(64),
			"priority":    validation.Integer(0, 4),
			"type":        validation.Enum(workItemTypes...),
		}),
		Relations: []string{"state", "assignee", "team", "parent", "children", "project"},
		RelationMap: map[string]store.Include{
			"children": {OrderBy: []store.Order{{Field: "sequence"}}},
		},
		Permissions: resource.Permissions{
			Create: canWrite,
			Update: canWriteItem,
			Delete: canDeleteItem,
		},
		DefaultFilter:  teamScoped(false),
		SearchFields:   []string{"title", "identifier", "description"},
		SortableFields: []string{"priority", "sequence", "title", "identifier"},
	}
}

type workItemHooks struct {
	*resource.BaseHooks
	teams     store.Model
	states    store.Model
	sequencer store.Sequencer
	refs      *references
}

// maxParentDepth bounds the walk up a parent chain.
const maxParentDepth = 64

func newWorkItemHooks(cfg *resource.Config, deps Deps) resource.Hooks {
	return &workItemHooks{
		BaseHooks: &resource.BaseHooks{Config: cfg},
		teams:     deps.Store.Model(storage.TableTeams),
		states:    deps.Store.Model(storage.TableWorkflowStates),
		sequencer: deps.Sequencer,
		refs:      newReferences(deps.Store),
	}
}

// BeforeCreate derives the fields a caller may omit. A sub-item takes its
// team and type from the parent. The state comes from the team's default,
// then the workspace default, then the parent's state. The identifier is the team key plus
// the next number of the team's counter.
func (h *workItemHooks) BeforeCreate(ctx context.Context, wc *workspace.Context, data store.Record) (store.Record, error) {
	var parent store.Record
	if parentID := data.String("parent_id"); parentID != "" {
		var err error
		parent, err = h.findVisible(ctx, wc, parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fieldError("parent_id", "parent work item not found")
		}
		if data["team_id"] == nil {
			data["team_id"] = parent["team_id"]
		}
		if data["type"] == nil {
			data["type"] = parent["type"]
		}
	}

	team, err := findVisibleTeam(ctx, h.teams, wc, data.String("team_id"))
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, fieldError("team_id", "team not found")
	}
	if err := h.refs.check(ctx, wc, data, "project_id", "assignee_id"); err != nil {
		return nil, err
	}

	if stateID := data.String("state_id"); stateID != "" {
		if err := h.checkState(ctx, wc, team.ID(), stateID); err != nil {
			return nil, err
		}
	} else {
		state, err := h.defaultState(ctx, wc, team.ID(), parent)
		if err != nil {
			return nil, err
		}
		data["state_id"] = state
	}

	if data["type"] == nil {
		data["type"] = "issue"
	}
	if data["priority"] == nil {
		data["priority"] = 0
	}

	seq, err := h.sequencer.Next(ctx, "work_items:"+team.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate identifier: %w", err)
	}
	data["sequence"] = seq
	data["identifier"] = fmt.Sprintf("%s-%d", team.String("key"), seq)
	return data, nil
}

func (h *workItemHooks) BeforeUpdate(ctx context.Context, wc *workspace.Context, existing, input store.Record) (store.Record, error) {
	data, err := h.BaseHooks.BeforeUpdate(ctx, wc, existing, input)
	if err != nil {
		return nil, err
	}
	for _, f := range []string{"team_id", "identifier", "sequence"} {
		delete(data, f)
	}

	if parentID, ok := data["parent_id"].(string); ok && parentID != "" {
		if err := h.checkParent(ctx, wc, existing.ID(), parentID); err != nil {
			return nil, err
		}
	}
	if err := h.refs.check(ctx, wc, data, "project_id", "assignee_id"); err != nil {
		return nil, err
	}
	if stateID, ok := data["state_id"].(string); ok && stateID != "" {
		if err := h.checkState(ctx, wc, existing.String("team_id"), stateID); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// checkParent refuses a parent that is missing, invisible, or that would
// close a loop: the chain above parentID must not pass through id.
func (h *workItemHooks) checkParent(ctx context.Context, wc *workspace.Context, id, parentID string) error {
	if parentID == id {
		return fieldError("parent_id", "a work item cannot be its own parent")
	}
	parent, err := h.findVisible(ctx, wc, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return fieldError("parent_id", "parent work item not found")
	}

	for depth := 0; parent != nil; depth++ {
		next := parent.String("parent_id")
		if next == "" {
			return nil
		}
		if next == id {
			return fieldError("parent_id", "parent would create a cycle")
		}
		if depth >= maxParentDepth {
			return fieldError("parent_id", "parent chain is too deep")
		}
		parent, err = h.Config.Model.FindFirst(ctx, store.Query{Where: store.All(inWorkspace(wc), store.Eq{Field: "id", Value: next})})
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *workItemHooks) findVisible(ctx context.Context, wc *workspace.Context, id string) (store.Record, error) {
	visible, err := h.Config.DefaultFilter(ctx, wc)
	if err != nil {
		return nil, err
	}
	return h.Config.Model.FindFirst(ctx, store.Query{Where: store.All(visible, store.Eq{Field: "id", Value: id})})
}

// checkState accepts workspace-wide states and the states of teamID.
func (h *workItemHooks) checkState(ctx context.Context, wc *workspace.Context, teamID, id string) error {
	state, err := h.states.FindFirst(ctx, store.Query{Where: store.All(
		inWorkspace(wc),
		ofTeam(teamID),
		store.Eq{Field: "id", Value: id},
	)})
	if err != nil {
		return err
	}
	if state == nil {
		return fieldError("state_id", "workflow state not found")
	}
	return nil
}

// defaultState picks the state for a new item: the team's or workspace's
// default, then the parent's state, then the first state by position.
func (h *workItemHooks) defaultState(ctx context.Context, wc *workspace.Context, teamID string, parent store.Record) (any, error) {
	def, err := h.states.FindFirst(ctx, store.Query{
		Where: store.All(inWorkspace(wc), ofTeam(teamID), store.Eq{Field: "is_default", Value: true}),
		// Team-specific defaults sort ahead of workspace-wide ones.
		OrderBy: []store.Order{{Field: "team_id", Desc: true}},
	})
	if err != nil {
		return nil, err
	}
	if def != nil {
		return def.ID(), nil
	}
	if parent != nil && parent["state_id"] != nil {
		return parent["state_id"], nil
	}
	first, err := h.states.FindFirst(ctx, store.Query{
		Where:   store.All(inWorkspace(wc), ofTeam(teamID)),
		OrderBy: []store.Order{{Field: "position"}},
	})
	if err != nil || first == nil {
		return nil, err
	}
	return first.ID(), nil
}

// ofTeam selects workspace-wide rows and the rows of teamID.
func ofTeam(teamID string) store.Filter {
	return store.Any(store.Eq{Field: "team_id", Value: nil}, store.Eq{Field: "team_id", Value: teamID})
}
