package resources

import (
	"context"

	"github.com/baseplate/tracker/internal/core/resource"
	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/core/workspace"
	"github.com/baseplate/tracker/internal/storage"
)

// references checks foreign keys in a write against the rows the caller can
// see. A reference that points outside the workspace, or at something the
// caller cannot see, is reported as not found.
type references struct {
	teams    store.Model
	projects store.Model
	members  store.Model
}

func newReferences(p store.Provider) *references {
	return &references{
		teams:    p.Model(storage.TableTeams),
		projects: p.Model(storage.TableProjects),
		members:  p.Model(storage.TableWorkspaceMembers),
	}
}

// check validates the listed fields of data. Absent and null values are
// skipped; clearing a reference is always allowed.
func (r *references) check(ctx context.Context, wc *workspace.Context, data store.Record, fields ...string) error {
	for _, field := range fields {
		id, ok := data[field].(string)
		if !ok || id == "" {
			continue
		}
		found, message, err := r.lookup(ctx, wc, field, id)
		if err != nil {
			return err
		}
		if !found {
			return fieldError(field, message)
		}
	}
	return nil
}

func (r *references) lookup(ctx context.Context, wc *workspace.Context, field, id string) (bool, string, error) {
	switch field {
	case "team_id":
		team, err := findVisibleTeam(ctx, r.teams, wc, id)
		return team != nil, "team not found", err
	case "project_id":
		visible, err := teamScoped(true)(ctx, wc)
		if err != nil {
			return false, "", err
		}
		project, err := r.projects.FindFirst(ctx, store.Query{Where: store.All(visible, store.Eq{Field: "id", Value: id})})
		return project != nil, "project not found", err
	case "assignee_id", "lead_id", "user_id":
		member, err := r.members.FindFirst(ctx, store.Query{Where: store.All(
			inWorkspace(wc),
			store.Eq{Field: "user_id", Value: id},
		)})
		return member != nil, "user is not a member of this workspace", err
	}
	return false, field + " cannot be resolved", nil
}

// catalogHooks guards the references of labels and projects.
type catalogHooks struct {
	*resource.BaseHooks
	refs   *references
	fields []string
}

func newCatalogHooks(fields ...string) func(*resource.Config, Deps) resource.Hooks {
	return func(cfg *resource.Config, deps Deps) resource.Hooks {
		return &catalogHooks{
			BaseHooks: &resource.BaseHooks{Config: cfg},
			refs:      newReferences(deps.Store),
			fields:    fields,
		}
	}
}

func (h *catalogHooks) BeforeCreate(ctx context.Context, wc *workspace.Context, data store.Record) (store.Record, error) {
	if err := h.refs.check(ctx, wc, data, h.fields...); err != nil {
		return nil, err
	}
	return data, nil
}

func (h *catalogHooks) BeforeUpdate(ctx context.Context, wc *workspace.Context, existing, input store.Record) (store.Record, error) {
	data, err := h.BaseHooks.BeforeUpdate(ctx, wc, existing, input)
	if err != nil {
		return nil, err
	}
	if err := h.refs.check(ctx, wc, data, h.fields...); err != nil {
		return nil, err
	}
	return data, nil
}
