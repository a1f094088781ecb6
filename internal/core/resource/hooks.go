package resource

import (
	"context"

	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/core/workspace"
)

// Hooks are the extension points of the generic operations. Specializations
// embed BaseHooks and override what they need.
type Hooks interface {
	// BuildCreateData merges caller context into the validated input.
	BuildCreateData(ctx context.Context, wc *workspace.Context, input store.Record) (store.Record, error)
	BeforeCreate(ctx context.Context, wc *workspace.Context, data store.Record) (store.Record, error)
	AfterCreate(ctx context.Context, wc *workspace.Context, created store.Record) (store.Record, error)

	// BeforeUpdate returns the fields to persist.
	BeforeUpdate(ctx context.Context, wc *workspace.Context, existing, input store.Record) (store.Record, error)
	// PersistUpdate writes the fields returned by BeforeUpdate and returns
	// the updated item.
	PersistUpdate(ctx context.Context, wc *workspace.Context, existing, data store.Record) (store.Record, error)
	AfterUpdate(ctx context.Context, wc *workspace.Context, updated store.Record) (store.Record, error)

	// BeforeDelete may veto the delete, typically with a BusinessRuleError.
	BeforeDelete(ctx context.Context, wc *workspace.Context, existing store.Record) error
}

// immutableFields are never written from an update body.
var immutableFields = []string{"id", "workspace_id", "created_by", "created_at", "updated_at"}

// BaseHooks is the identity implementation plus tenant stamping.
type BaseHooks struct {
	Config *Config
}

func NewBaseHooks(cfg *Config) Hooks {
	return &BaseHooks{Config: cfg}
}

func (h *BaseHooks) BuildCreateData(_ context.Context, wc *workspace.Context, input store.Record) (store.Record, error) {
	data := input.Clone()
	if data == nil {
		data = store.Record{}
	}
	data["workspace_id"] = wc.Workspace.ID
	data["created_by"] = wc.CallerID
	return data, nil
}

func (h *BaseHooks) BeforeCreate(_ context.Context, _ *workspace.Context, data store.Record) (store.Record, error) {
	return data, nil
}

func (h *BaseHooks) AfterCreate(_ context.Context, _ *workspace.Context, created store.Record) (store.Record, error) {
	return created, nil
}

func (h *BaseHooks) BeforeUpdate(_ context.Context, _ *workspace.Context, _, input store.Record) (store.Record, error) {
	data := input.Clone()
	if data == nil {
		data = store.Record{}
	}
	for _, f := range immutableFields {
		delete(data, f)
	}
	return data, nil
}

func (h *BaseHooks) PersistUpdate(ctx context.Context, _ *workspace.Context, existing, data store.Record) (store.Record, error) {
	return h.Config.Model.Update(ctx, existing.ID(), data)
}

func (h *BaseHooks) AfterUpdate(_ context.Context, _ *workspace.Context, updated store.Record) (store.Record, error) {
	return updated, nil
}

func (h *BaseHooks) BeforeDelete(context.Context, *workspace.Context, store.Record) error {
	return nil
}
