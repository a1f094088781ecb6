package resource

import (
	"context"
	"fmt"
	"strings"

	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/core/workspace"
)

type Operation string

const (
	OpList   Operation = "list"
	OpGet    Operation = "get"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Mutating reports whether op writes.
func (op Operation) Mutating() bool {
	return op == OpCreate || op == OpUpdate || op == OpDelete
}

// ActionRequest addresses one operation as "<resource>.<operation>".
type ActionRequest struct {
	Action     string         `json:"action" binding:"required"`
	ResourceID string         `json:"resourceId,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// ParseAction splits "work_items.create" into its resource and operation.
func ParseAction(action string) (string, Operation, error) {
	name, op, found := strings.Cut(action, ".")
	if !found || name == "" {
		return "", "", fmt.Errorf("%w: malformed action %q", ErrInvalidRequest, action)
	}
	switch Operation(op) {
	case OpList, OpGet, OpCreate, OpUpdate, OpDelete:
		return name, Operation(op), nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnknownOperation, op)
}

// Dispatcher routes action requests to handlers.
type Dispatcher struct {
	registry *Registry
	factory  *Factory
}

func NewDispatcher(registry *Registry, factory *Factory) *Dispatcher {
	return &Dispatcher{registry: registry, factory: factory}
}

func (d *Dispatcher) Handler(name string) (*Handler, error) {
	cfg, ok := d.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	return d.factory.Handler(cfg), nil
}

// Dispatch runs req against wc. The context must come from the workspace
// resolver; the item id is taken from req.ResourceID.
func (d *Dispatcher) Dispatch(ctx context.Context, wc *workspace.Context, req ActionRequest) (*Response, error) {
	name, op, err := ParseAction(req.Action)
	if err != nil {
		return nil, err
	}
	h, err := d.Handler(name)
	if err != nil {
		return nil, err
	}

	switch op {
	case OpList:
		return h.List(ctx, wc, ListParamsFromMap(req.Data))
	case OpCreate:
		return h.Create(ctx, wc, store.Record(req.Data))
	}

	if req.ResourceID == "" {
		return nil, fmt.Errorf("%w: %s requires resourceId", ErrInvalidRequest, req.Action)
	}
	item := wc.WithItem(req.ResourceID)
	switch op {
	case OpGet:
		return h.Get(ctx, item)
	case OpUpdate:
		return h.Update(ctx, item, store.Record(req.Data))
	default:
		return h.Delete(ctx, item)
	}
}
