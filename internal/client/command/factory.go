package command

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/baseplate/tracker/internal/client/action"
	"github.com/baseplate/tracker/internal/client/cache"
	"github.com/baseplate/tracker/internal/core/resource"
)

// serverManaged columns are never sent back when an item is recreated.
var serverManaged = []string{"id", "workspace_id", "created_by", "created_at", "updated_at", "identifier", "sequence"}

// Options describe the resource a Factory builds commands for.
type Options struct {
	// Resource is the action prefix, e.g. "work_items".
	Resource string
	// Singular labels items that have no name or title. Defaults to the
	// resource name with underscores spaced and the trailing "s" dropped.
	Singular string
	// Fields limits what Duplicate and undo-of-delete copy from an item.
	// Empty means every scalar field except server-managed ones.
	Fields []string
	// Recreate builds the create payload from an item for Duplicate and
	// undo-of-delete, for resources whose create body differs from their
	// records. It takes precedence over Fields.
	Recreate func(item map[string]any) map[string]any
	// ListKey is the cache key optimistic writes apply to. Defaults to
	// Resource.
	ListKey string
}

// Factory builds commands for one resource. With a non-nil reconciler every
// remote call is applied optimistically to the cached list first.
type Factory struct {
	client     action.Client
	notifier   Notifier
	reconciler *cache.Reconciler
	opts       Options
}

func NewFactory(client action.Client, notifier Notifier, reconciler *cache.Reconciler, opts Options) *Factory {
	if opts.Singular == "" {
		opts.Singular = strings.TrimSuffix(strings.ReplaceAll(opts.Resource, "_", " "), "s")
	}
	if opts.ListKey == "" {
		opts.ListKey = opts.Resource
	}
	return &Factory{client: client, notifier: notifier, reconciler: reconciler, opts: opts}
}

// Create inserts data. Undo deletes whatever the server created.
func (f *Factory) Create(data map[string]any) *Command {
	return f.creating(TypeCreate, "create", "Created", cloneRecord(data))
}

// Duplicate inserts a copy of item under a new id.
func (f *Factory) Duplicate(item map[string]any) *Command {
	data := f.writable(item)
	for _, field := range []string{"name", "title"} {
		if s, ok := data[field].(string); ok && s != "" {
			data[field] = s + " (copy)"
			break
		}
	}
	return f.creating(TypeDuplicate, "duplicate", "Duplicated", data)
}

func (f *Factory) creating(typ Type, verb, done string, data map[string]any) *Command {
	label := f.label(data)
	created := &idRef{}

	execute := func(ctx context.Context) action.Result {
		res := f.call(ctx, action.Request{Action: f.action(resource.OpCreate), Data: cloneRecord(data)}, cache.AppendPlaceholder(data))
		if !res.Success {
			return f.failed(verb, label, res)
		}
		created.set(idOf(res.Record()))
		f.notifier.Success(fmt.Sprintf("%s %s", done, label))
		return res
	}
	undo := func(ctx context.Context) action.Result {
		id := created.get()
		if id == "" {
			return f.failed("undo", label, action.Failure("%s was never created", label))
		}
		res := f.call(ctx, action.Request{Action: f.action(resource.OpDelete), ResourceID: id}, cache.RemoveByID(id))
		if !res.Success {
			return f.failed("undo", label, res)
		}
		created.set("")
		f.notifier.Success(fmt.Sprintf("Removed %s", label))
		return res
	}

	return New(typ, f.opts.Resource, fmt.Sprintf("%s %s", strings.ToUpper(verb[:1])+verb[1:], label), execute, undo)
}

// Update patches item id with data. Undo is only possible when snapshot,
// the item as it was before the edit, is supplied.
func (f *Factory) Update(id string, data, snapshot map[string]any) *Command {
	data = cloneRecord(data)
	label := f.label(data)
	if label == f.opts.Singular && snapshot != nil {
		label = f.label(snapshot)
	}

	execute := func(ctx context.Context) action.Result {
		res := f.call(ctx, action.Request{Action: f.action(resource.OpUpdate), ResourceID: id, Data: cloneRecord(data)}, cache.PatchByID(id, data))
		if !res.Success {
			return f.failed("update", label, res)
		}
		f.notifier.Success(fmt.Sprintf("Updated %s", label))
		return res
	}

	var undo Func
	if snapshot != nil {
		revert := make(map[string]any, len(data))
		for k := range data {
			if v, ok := snapshot[k]; ok {
				revert[k] = v
			}
		}
		undo = func(ctx context.Context) action.Result {
			res := f.call(ctx, action.Request{Action: f.action(resource.OpUpdate), ResourceID: id, Data: cloneRecord(revert)}, cache.PatchByID(id, revert))
			if !res.Success {
				return f.failed("undo", label, res)
			}
			f.notifier.Success(fmt.Sprintf("Reverted %s", label))
			return res
		}
	}

	return New(TypeUpdate, f.opts.Resource, fmt.Sprintf("Update %s", label), execute, undo)
}

// Delete removes item. Undo recreates it from its writable fields; the
// restored item gets a new id, which a later redo deletes.
func (f *Factory) Delete(item map[string]any) *Command {
	label := f.label(item)
	data := f.writable(item)
	current := &idRef{id: idOf(item)}

	execute := func(ctx context.Context) action.Result {
		id := current.get()
		res := f.call(ctx, action.Request{Action: f.action(resource.OpDelete), ResourceID: id}, cache.RemoveByID(id))
		if !res.Success {
			return f.failed("delete", label, res)
		}
		f.notifier.Success(fmt.Sprintf("Deleted %s", label))
		return res
	}
	undo := func(ctx context.Context) action.Result {
		res := f.call(ctx, action.Request{Action: f.action(resource.OpCreate), Data: cloneRecord(data)}, cache.AppendPlaceholder(data))
		if !res.Success {
			return f.failed("restore", label, res)
		}
		current.set(idOf(res.Record()))
		f.notifier.Success(fmt.Sprintf("Restored %s", label))
		return res
	}

	return New(TypeDelete, f.opts.Resource, fmt.Sprintf("Delete %s", label), execute, undo)
}

// BulkDelete removes every item. It stops at the first failure; items
// deleted before it stay deleted.
func (f *Factory) BulkDelete(items []map[string]any) *Command {
	label := fmt.Sprintf("%d %s", len(items), strings.ReplaceAll(f.opts.Resource, "_", " "))
	refs := make([]*idRef, len(items))
	datas := make([]map[string]any, len(items))
	for i, item := range items {
		refs[i] = &idRef{id: idOf(item)}
		datas[i] = f.writable(item)
	}

	execute := func(ctx context.Context) action.Result {
		ids := make([]string, len(refs))
		for i, ref := range refs {
			ids[i] = ref.get()
		}
		var deleted int
		res := f.batch(ctx, cache.RemoveByID(ids...), func(ctx context.Context) action.Result {
			for _, id := range ids {
				if r := f.client.Do(ctx, action.Request{Action: f.action(resource.OpDelete), ResourceID: id}); !r.Success {
					return r
				}
				deleted++
			}
			return action.Result{Success: true, Data: map[string]any{"deleted": deleted}}
		})
		if !res.Success {
			f.refreshAfterPartial(ctx, deleted)
			return f.failed("delete", label, res)
		}
		f.notifier.Success(fmt.Sprintf("Deleted %s", label))
		return res
	}
	undo := func(ctx context.Context) action.Result {
		var placeholders []cache.Transform
		for _, data := range datas {
			placeholders = append(placeholders, cache.AppendPlaceholder(data))
		}
		var restored int
		res := f.batch(ctx, chain(placeholders...), func(ctx context.Context) action.Result {
			for i, data := range datas {
				r := f.client.Do(ctx, action.Request{Action: f.action(resource.OpCreate), Data: cloneRecord(data)})
				if !r.Success {
					return r
				}
				refs[i].set(idOf(r.Record()))
				restored++
			}
			return action.Result{Success: true, Data: map[string]any{"restored": restored}}
		})
		if !res.Success {
			f.refreshAfterPartial(ctx, restored)
			return f.failed("restore", label, res)
		}
		f.notifier.Success(fmt.Sprintf("Restored %s", label))
		return res
	}

	return New(TypeBulkDelete, f.opts.Resource, fmt.Sprintf("Delete %s", label), execute, undo)
}

func (f *Factory) action(op resource.Operation) string {
	return f.opts.Resource + "." + string(op)
}

// call runs one request, optimistically when a reconciler is configured.
func (f *Factory) call(ctx context.Context, req action.Request, transform cache.Transform) action.Result {
	return f.batch(ctx, transform, func(ctx context.Context) action.Result {
		return f.client.Do(ctx, req)
	})
}

func (f *Factory) batch(ctx context.Context, transform cache.Transform, remote func(context.Context) action.Result) action.Result {
	if f.reconciler == nil {
		return remote(ctx)
	}
	var res action.Result
	_ = f.reconciler.Mutate(ctx, cache.Mutation{
		Key:       f.opts.ListKey,
		Transform: transform,
		Remote: func(ctx context.Context) error {
			res = remote(ctx)
			if !res.Success {
				return errors.New(res.Error)
			}
			return nil
		},
	})
	return res
}

// refreshAfterPartial refetches when a failed batch still changed the server.
func (f *Factory) refreshAfterPartial(ctx context.Context, applied int) {
	if f.reconciler == nil || applied == 0 {
		return
	}
	_ = f.reconciler.Cache().Invalidate(ctx, cache.Prefix(f.opts.ListKey))
}

func (f *Factory) failed(verb, label string, res action.Result) action.Result {
	f.notifier.Error(fmt.Sprintf("Failed to %s %s: %s", verb, label, res.Error))
	return res
}

// label names an item by its name or title, falling back to the singular
// resource name.
func (f *Factory) label(item map[string]any) string {
	for _, field := range []string{"name", "title"} {
		if s, ok := item[field].(string); ok && s != "" {
			return fmt.Sprintf("%q", s)
		}
	}
	return f.opts.Singular
}

// writable keeps the fields that can be sent back in a create.
func (f *Factory) writable(item map[string]any) map[string]any {
	if f.opts.Recreate != nil {
		return cloneRecord(f.opts.Recreate(item))
	}
	out := make(map[string]any, len(item))
	if len(f.opts.Fields) > 0 {
		for _, field := range f.opts.Fields {
			if v, ok := item[field]; ok && v != nil {
				out[field] = v
			}
		}
		return out
	}
	for k, v := range item {
		switch v.(type) {
		case nil, map[string]any, []any:
			continue
		}
		out[k] = v
	}
	for _, k := range serverManaged {
		delete(out, k)
	}
	return out
}

// MemberPayload recreates a workspace membership from a members record: the
// account's email, taken from the user relation, plus the role.
func MemberPayload(item map[string]any) map[string]any {
	out := map[string]any{}
	email, _ := item["email"].(string)
	if user, ok := item["user"].(map[string]any); ok && email == "" {
		email, _ = user["email"].(string)
	}
	if email != "" {
		out["email"] = email
	}
	if role, ok := item["role"].(string); ok && role != "" {
		out["role"] = role
	}
	return out
}

func chain(transforms ...cache.Transform) cache.Transform {
	return func(items []cache.Item) []cache.Item {
		for _, t := range transforms {
			items = t(items)
		}
		return items
	}
}

func idOf(item map[string]any) string {
	id, _ := item["id"].(string)
	return id
}

func cloneRecord(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	return maps.Clone(data)
}

type idRef struct {
	mu sync.Mutex
	id string
}

func (r *idRef) get() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

func (r *idRef) set(id string) {
	r.mu.Lock()
	r.id = id
	r.mu.Unlock()
}
