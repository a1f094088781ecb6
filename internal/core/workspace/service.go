package workspace

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/storage"
)

var (
	ErrWorkspaceExists = errors.New("workspace with this slug already exists")
	ErrInvalidSlug     = errors.New("slug must be lowercase letters, digits and dashes")
	ErrForbidden       = errors.New("forbidden")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,47}$`)

type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

type UpdateWorkspaceRequest struct {
	Name string `json:"name" binding:"required"`
}

// Membership is one workspace as seen by one of its members.
type Membership struct {
	Workspace Workspace `json:"workspace"`
	Role      Role      `json:"role"`
}

// DefaultState is a workflow state seeded into every new workspace.
type DefaultState struct {
	Name      string
	Type      string
	Color     string
	IsDefault bool
}

var DefaultStates = []DefaultState{
	{Name: "Backlog", Type: "backlog", Color: "#95a2b3"},
	{Name: "Todo", Type: "unstarted", Color: "#e2e2e2", IsDefault: true},
	{Name: "In Progress", Type: "started", Color: "#f2c94c"},
	{Name: "Done", Type: "completed", Color: "#5e6ad2"},
	{Name: "Canceled", Type: "canceled", Color: "#95a2b3"},
}

type Service struct {
	workspaces store.Model
	members    store.Model
	states     store.Model
}

func NewService(p store.Provider) *Service {
	return &Service{
		workspaces: p.Model(storage.TableWorkspaces),
		members:    p.Model(storage.TableWorkspaceMembers),
		states:     p.Model(storage.TableWorkflowStates),
	}
}

// Create makes a workspace, adds the caller as its admin and seeds the
// default workflow states.
func (s *Service) Create(ctx context.Context, callerID string, req *CreateWorkspaceRequest) (*Workspace, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	if !slugPattern.MatchString(req.Slug) {
		return nil, ErrInvalidSlug
	}

	rec, err := s.workspaces.Create(ctx, store.Record{
		"id":         uuid.NewString(),
		"slug":       req.Slug,
		"name":       req.Name,
		"created_by": callerID,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrWorkspaceExists
		}
		return nil, err
	}
	ws := &Workspace{ID: rec.ID(), Slug: rec.String("slug"), Name: rec.String("name")}

	if _, err := s.members.Create(ctx, store.Record{
		"workspace_id": ws.ID,
		"user_id":      callerID,
		"role":         string(RoleAdmin),
	}); err != nil {
		return nil, fmt.Errorf("failed to add workspace owner: %w", err)
	}

	for i, st := range DefaultStates {
		if _, err := s.states.Create(ctx, store.Record{
			"workspace_id": ws.ID,
			"name":         st.Name,
			"type":         st.Type,
			"color":        st.Color,
			"position":     i,
			"is_default":   st.IsDefault,
		}); err != nil {
			return nil, fmt.Errorf("failed to seed workflow states: %w", err)
		}
	}

	return ws, nil
}

// ListForUser returns every workspace the user belongs to.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*Membership, error) {
	rows, err := s.members.FindMany(ctx, store.Query{
		Where:   store.Eq{Field: "user_id", Value: userID},
		Include: []store.Include{{Name: "workspace"}},
		OrderBy: []store.Order{{Field: "created_at"}},
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Membership, 0, len(rows))
	for _, row := range rows {
		ws, ok := row["workspace"].(store.Record)
		if !ok {
			continue
		}
		out = append(out, &Membership{
			Workspace: Workspace{ID: ws.ID(), Slug: ws.String("slug"), Name: ws.String("name")},
			Role:      Role(row.String("role")),
		})
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, wc *Context, req *UpdateWorkspaceRequest) (*Workspace, error) {
	if !wc.Can(PermWorkspaceManage) {
		return nil, ErrForbidden
	}
	rec, err := s.workspaces.Update(ctx, wc.Workspace.ID, store.Record{"name": req.Name})
	if err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Workspace{ID: rec.ID(), Slug: rec.String("slug"), Name: rec.String("name")}, nil
}

func (s *Service) Delete(ctx context.Context, wc *Context) error {
	if !wc.Can(PermWorkspaceManage) {
		return ErrForbidden
	}
	if err := s.workspaces.Delete(ctx, wc.Workspace.ID); err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
