/*
Package store defines the delegate contract between the resource engine and
a persistence backend.

A Model is an opaque handle to one table or collection. It offers count,
findMany, findFirst, create, update and delete over generic Records, with
where / include / orderBy / skip / take parameters expressed as Query. The
engine never builds SQL itself; backends (internal/storage/postgres,
internal/storage/memory) compile Query into whatever they speak.
*/
package store

import (
	"context"
	"errors"
)

var (
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("unique constraint violation")

	// ErrUnknownRelation is returned when an include names a relation the
	// model does not define.
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrUnknownField is returned when a filter or ordering references a
	// field outside the model's schema.
	ErrUnknownField = errors.New("unknown field")

	// ErrNoRecord is returned by Update and Delete when the id does not exist.
	ErrNoRecord = errors.New("record not found")
)

// Record is one row as a field map. Relation includes are stored under the
// relation name as Record (to-one) or []Record (to-many).
type Record map[string]any

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// String returns the field as a string, or "" when absent or not a string.
func (r Record) String(field string) string {
	if s, ok := r[field].(string); ok {
		return s
	}
	return ""
}

// ID returns the record's "id" field.
func (r Record) ID() string {
	return r.String("id")
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		return Record(t).Clone()
	case []Record:
		out := make([]Record, len(t))
		for i, rec := range t {
			out[i] = rec.Clone()
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Order sorts by one field.
type Order struct {
	Field string
	Desc  bool
}

// Include asks the backend to load a relation alongside each row. A bare
// Include{Name} loads the related rows unfiltered and without nesting.
type Include struct {
	Name    string
	Where   Filter
	OrderBy []Order
	Include []Include
}

// Query parameterises FindMany, FindFirst and Count.
type Query struct {
	Where   Filter
	Include []Include
	OrderBy []Order
	Skip    int
	Take    int
}

// Model is the persistence delegate for one table.
type Model interface {
	Name() string
	Count(ctx context.Context, where Filter) (int, error)
	FindMany(ctx context.Context, q Query) ([]Record, error)
	// FindFirst returns (nil, nil) when nothing matches.
	FindFirst(ctx context.Context, q Query) (Record, error)
	Create(ctx context.Context, data Record) (Record, error)
	Update(ctx context.Context, id string, data Record) (Record, error)
	Delete(ctx context.Context, id string) error
}

// Provider hands out models by table name.
type Provider interface {
	Model(table string) Model
}

// Sequencer issues monotonically increasing, collision-free numbers per
// scope. Implementations must be atomic under concurrent callers.
type Sequencer interface {
	Next(ctx context.Context, scope string) (int64, error)
}
