/*
Package resource turns a declarative Config into an authorized,
workspace-scoped CRUD surface.

Each entity type registers one Config describing its persisted model,
create and update schemas, navigable relations, permission predicates and
default visibility filter. A Handler runs the five canonical operations
(list, create, get, update, delete) against a Config and a resolved
workspace.Context. Entity-specific derivations live in Hooks, selected by
the Factory from the Config's Kind.
*/
package resource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/core/workspace"
)

// Kind tags a Config with the specialization that should serve it.
type Kind int

const (
	KindGeneric Kind = iota
	KindTeam
	KindTeamMember
	KindLabel
	KindProject
	KindWorkflowState
	KindWorkItem
	KindMember
)

var kindNames = map[Kind]string{
	KindGeneric:       "generic",
	KindTeam:          "team",
	KindTeamMember:    "team_member",
	KindLabel:         "label",
	KindProject:       "project",
	KindWorkflowState: "workflow_state",
	KindWorkItem:      "work_item",
	KindMember:        "member",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FilterFunc computes the visibility filter for one request. It may query
// the store, so it takes a context and can fail.
type FilterFunc func(ctx context.Context, wc *workspace.Context) (store.Filter, error)

// Permissions are optional predicates checked on top of visibility. A nil
// predicate allows the operation.
type Permissions struct {
	Create func(wc *workspace.Context) bool
	Update func(wc *workspace.Context, item store.Record) bool
	Delete func(wc *workspace.Context, item store.Record) bool
}

type Config struct {
	// Name is the plural action prefix, e.g. "teams" in "teams.list".
	Name string
	// Singular labels one item in messages, e.g. "team".
	Singular string
	Kind     Kind
	Model    store.Model

	CreateSchema map[string]any
	UpdateSchema map[string]any

	// Relations are the keys included on every read. RelationMap refines
	// individual keys into filtered or nested includes.
	Relations   []string
	RelationMap map[string]store.Include

	Permissions   Permissions
	DefaultFilter FilterFunc

	SearchFields []string
	// SortField overrides the default created_at ordering.
	SortField      string
	SortAscending  bool
	SortableFields []string
}

// WorkspaceFilter scopes rows to the caller's workspace.
func WorkspaceFilter(_ context.Context, wc *workspace.Context) (store.Filter, error) {
	return store.Eq{Field: "workspace_id", Value: wc.Workspace.ID}, nil
}

func (c *Config) validate() error {
	switch {
	case c.Name == "":
		return errors.New("resource: config without name")
	case c.Model == nil:
		return fmt.Errorf("resource %s: config without model", c.Name)
	}
	return nil
}

func (c *Config) singular() string {
	if c.Singular != "" {
		return c.Singular
	}
	return c.Name
}

func (c *Config) defaultFilter(ctx context.Context, wc *workspace.Context) (store.Filter, error) {
	if c.DefaultFilter == nil {
		return WorkspaceFilter(ctx, wc)
	}
	return c.DefaultFilter(ctx, wc)
}

func (c *Config) sortable(field string) bool {
	if field == "created_at" || field == "updated_at" || field == c.SortField {
		return true
	}
	for _, f := range c.SortableFields {
		if f == field {
			return true
		}
	}
	return false
}

// Registry holds the configs by name.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*Config
}

func NewRegistry() *Registry {
	return &Registry{configs: make(map[string]*Config)}
}

// Register adds cfg. Names are unique.
func (r *Registry) Register(cfg *Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.configs[cfg.Name]; exists {
		return fmt.Errorf("resource %s: already registered", cfg.Name)
	}
	r.configs[cfg.Name] = cfg
	return nil
}

// MustRegister is Register for wiring code.
func (r *Registry) MustRegister(cfgs ...*Config) {
	for _, cfg := range cfgs {
		if err := r.Register(cfg); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(name string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
