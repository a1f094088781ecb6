// Package resources declares the tracker's entity types and their
// specializations of the generic resource handler.
package resources

import (
	"context"
	"fmt"

	"github.com/baseplate/tracker/internal/core/auth"
	"github.com/baseplate/tracker/internal/core/resource"
	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/core/workspace"
	"github.com/baseplate/tracker/internal/storage"
)

// Accounts resolves invited members to user accounts.
type Accounts interface {
	FindOrCreateByEmail(ctx context.Context, email, name string) (*auth.User, error)
	IssueInviteToken(ctx context.Context, userID string) (string, error)
}

type Deps struct {
	Store     store.Provider
	Sequencer store.Sequencer
	Accounts  Accounts
}

// Register declares every resource in reg and binds the specializations in
// f.
func Register(reg *resource.Registry, f *resource.Factory, deps Deps) error {
	f.Register(resource.KindTeam, func(cfg *resource.Config) resource.Hooks { return newTeamHooks(cfg, deps) })
	f.Register(resource.KindTeamMember, func(cfg *resource.Config) resource.Hooks { return newTeamMemberHooks(cfg, deps) })
	f.Register(resource.KindWorkflowState, func(cfg *resource.Config) resource.Hooks { return newStateHooks(cfg, deps) })
	f.Register(resource.KindWorkItem, func(cfg *resource.Config) resource.Hooks { return newWorkItemHooks(cfg, deps) })
	f.Register(resource.KindMember, func(cfg *resource.Config) resource.Hooks { return newMemberHooks(cfg, deps) })
	labels, projects := newCatalogHooks("team_id"), newCatalogHooks("team_id", "lead_id")
	f.Register(resource.KindLabel, func(cfg *resource.Config) resource.Hooks { return labels(cfg, deps) })
	f.Register(resource.KindProject, func(cfg *resource.Config) resource.Hooks { return projects(cfg, deps) })

	for _, cfg := range Configs(deps.Store) {
		if err := reg.Register(cfg); err != nil {
			return fmt.Errorf("failed to register %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// Configs returns the declarations, bound to p's models.
func Configs(p store.Provider) []*resource.Config {
	return []*resource.Config{
		teamConfig(p),
		teamMemberConfig(p),
		labelConfig(p),
		projectConfig(p),
		workflowStateConfig(p),
		workItemConfig(p),
		memberConfig(p),
	}
}

func canWrite(wc *workspace.Context) bool {
	return wc.Can(workspace.PermResourceWrite)
}

func canWriteItem(wc *workspace.Context, _ store.Record) bool {
	return wc.Can(workspace.PermResourceWrite)
}

func canDeleteItem(wc *workspace.Context, _ store.Record) bool {
	return wc.Can(workspace.PermResourceDelete)
}

func adminOnly(wc *workspace.Context) bool {
	return wc.IsAdmin()
}

func adminOnlyItem(wc *workspace.Context, _ store.Record) bool {
	return wc.IsAdmin()
}

func inWorkspace(wc *workspace.Context) store.Filter {
	return store.Eq{Field: "workspace_id", Value: wc.Workspace.ID}
}

// visibleTeams selects the teams the caller can see: all of them for an
// admin, otherwise public teams and private teams the caller belongs to.
func visibleTeams(wc *workspace.Context) store.Filter {
	if wc.IsAdmin() {
		return inWorkspace(wc)
	}
	return store.All(
		inWorkspace(wc),
		store.Any(
			store.Eq{Field: "private", Value: false},
			store.Related{
				Field:  "id",
				Table:  storage.TableTeamMembers,
				Column: "team_id",
				Where:  store.Eq{Field: "user_id", Value: wc.CallerID},
			},
		),
	)
}

// teamScoped selects rows whose team_id is a visible team. With optional,
// rows without a team are visible too.
func teamScoped(optional bool) resource.FilterFunc {
	return func(_ context.Context, wc *workspace.Context) (store.Filter, error) {
		if wc.IsAdmin() {
			return inWorkspace(wc), nil
		}
		visible := store.Related{Field: "team_id", Table: storage.TableTeams, Column: "id", Where: visibleTeams(wc)}
		if optional {
			return store.All(inWorkspace(wc), store.Any(store.Eq{Field: "team_id", Value: nil}, visible)), nil
		}
		return store.All(inWorkspace(wc), visible), nil
	}
}

// findVisibleTeam loads a team the caller can see, or nil.
func findVisibleTeam(ctx context.Context, teams store.Model, wc *workspace.Context, id string) (store.Record, error) {
	if id == "" {
		return nil, nil
	}
	return teams.FindFirst(ctx, store.Query{Where: store.All(visibleTeams(wc), store.Eq{Field: "id", Value: id})})
}
