// Package memory provides an in-memory implementation of the store
// delegates, for tests and single-process development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baseplate/tracker/internal/core/store"
)

// Store holds every table behind one lock, so semi-join filters see a
// consistent view of the related table.
type Store struct {
	mu      sync.RWMutex
	schemas map[string]store.Schema
	rows    map[string][]store.Record
	seq     map[string]int64
	last    time.Time
}

func NewStore(schemas []store.Schema) *Store {
	s := &Store{
		schemas: make(map[string]store.Schema, len(schemas)),
		rows:    make(map[string][]store.Record, len(schemas)),
		seq:     make(map[string]int64),
	}
	for _, sc := range schemas {
		s.schemas[sc.Table] = sc
	}
	return s
}

// Model returns the delegate for table. It panics on an undeclared table,
// which is a wiring error rather than a runtime condition.
func (s *Store) Model(table string) store.Model {
	sc, ok := s.schemas[table]
	if !ok {
		panic(fmt.Sprintf("memory: table not declared: %s", table))
	}
	return &Model{store: s, schema: sc}
}

// Next implements store.Sequencer.
func (s *Store) Next(_ context.Context, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[scope]++
	return s.seq[scope], nil
}

// now is strictly increasing so creation order is recoverable from
// timestamps even for back-to-back writes.
func (s *Store) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

type Model struct {
	store  *Store
	schema store.Schema
}

func (m *Model) Name() string { return m.schema.Table }

func (m *Model) Count(_ context.Context, where store.Filter) (int, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	rows, err := m.store.selectRows(m.schema, where)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (m *Model) FindMany(_ context.Context, q store.Query) ([]store.Record, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return m.store.findMany(m.schema, q)
}

func (m *Model) FindFirst(_ context.Context, q store.Query) (store.Record, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	q.Take = 1
	rows, err := m.store.findMany(m.schema, q)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (m *Model) Create(_ context.Context, data store.Record) (store.Record, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	rec := make(store.Record, len(m.schema.Columns))
	for _, c := range m.schema.Columns {
		rec[c] = nil
	}
	for k, v := range m.schema.Writable(data) {
		rec[k] = v
	}
	if id, _ := rec["id"].(string); id == "" {
		rec["id"] = uuid.NewString()
	}
	if m.schema.Timestamps {
		now := m.store.now()
		rec["created_at"] = now
		rec["updated_at"] = now
	}
	if err := m.store.checkUnique(m.schema, rec, ""); err != nil {
		return nil, err
	}

	m.store.rows[m.schema.Table] = append(m.store.rows[m.schema.Table], rec)
	return rec.Clone(), nil
}

func (m *Model) Update(_ context.Context, id string, data store.Record) (store.Record, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	rows := m.store.rows[m.schema.Table]
	for i, rec := range rows {
		if rec.ID() != id {
			continue
		}
		next := rec.Clone()
		for k, v := range m.schema.Writable(data) {
			if k == "id" {
				continue
			}
			next[k] = v
		}
		if m.schema.Timestamps {
			next["updated_at"] = m.store.now()
		}
		if err := m.store.checkUnique(m.schema, next, id); err != nil {
			return nil, err
		}
		rows[i] = next
		return next.Clone(), nil
	}
	return nil, store.ErrNoRecord
}

func (m *Model) Delete(_ context.Context, id string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	rows := m.store.rows[m.schema.Table]
	for i, rec := range rows {
		if rec.ID() == id {
			m.store.rows[m.schema.Table] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return store.ErrNoRecord
}

func (s *Store) checkUnique(sc store.Schema, rec store.Record, selfID string) error {
	for _, cols := range sc.Unique {
		for _, other := range s.rows[sc.Table] {
			if selfID != "" && other.ID() == selfID {
				continue
			}
			same := true
			for _, c := range cols {
				if rec[c] == nil || !equalValues(rec[c], other[c]) {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: %s(%s)", store.ErrConflict, sc.Table, strings.Join(cols, ","))
			}
		}
	}
	return nil
}

func (s *Store) selectRows(sc store.Schema, where store.Filter) ([]store.Record, error) {
	var out []store.Record
	for _, rec := range s.rows[sc.Table] {
		ok, err := s.match(sc, rec, where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) findMany(sc store.Schema, q store.Query) ([]store.Record, error) {
	rows, err := s.selectRows(sc, q.Where)
	if err != nil {
		return nil, err
	}
	if err := sortRows(sc, rows, q.OrderBy); err != nil {
		return nil, err
	}

	if q.Skip > 0 {
		if q.Skip >= len(rows) {
			rows = nil
		} else {
			rows = rows[q.Skip:]
		}
	}
	if q.Take > 0 && len(rows) > q.Take {
		rows = rows[:q.Take]
	}

	out := make([]store.Record, len(rows))
	for i, rec := range rows {
		out[i] = rec.Clone()
	}
	if err := s.loadIncludes(sc, out, q.Include); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) loadIncludes(sc store.Schema, rows []store.Record, includes []store.Include) error {
	for _, inc := range includes {
		rel, ok := sc.Relations[inc.Name]
		if !ok {
			return fmt.Errorf("%w: %s.%s", store.ErrUnknownRelation, sc.Table, inc.Name)
		}
		target, ok := s.schemas[rel.Table]
		if !ok {
			return fmt.Errorf("%w: %s.%s", store.ErrUnknownRelation, sc.Table, inc.Name)
		}
		for _, rec := range rows {
			related, err := s.findMany(target, store.Query{
				Where:   store.All(store.Eq{Field: rel.ForeignKey, Value: rec[rel.LocalKey]}, inc.Where),
				OrderBy: inc.OrderBy,
				Include: inc.Include,
			})
			if err != nil {
				return err
			}
			if rec[rel.LocalKey] == nil {
				related = nil
			}
			for _, r := range related {
				target.Conceal(r)
			}
			if rel.Many {
				if related == nil {
					related = []store.Record{}
				}
				rec[inc.Name] = related
				continue
			}
			if len(related) > 0 {
				rec[inc.Name] = related[0]
			} else {
				rec[inc.Name] = nil
			}
		}
	}
	return nil
}

func (s *Store) match(sc store.Schema, rec store.Record, f store.Filter) (bool, error) {
	switch f := f.(type) {
	case nil:
		return true, nil
	case store.Eq:
		if !sc.HasColumn(f.Field) {
			return false, unknownField(sc, f.Field)
		}
		if f.Value == nil {
			return rec[f.Field] == nil, nil
		}
		return equalValues(rec[f.Field], f.Value), nil
	case store.In:
		if !sc.HasColumn(f.Field) {
			return false, unknownField(sc, f.Field)
		}
		for _, v := range f.Values {
			if equalValues(rec[f.Field], v) {
				return true, nil
			}
		}
		return false, nil
	case store.Contains:
		if !sc.HasColumn(f.Field) {
			return false, unknownField(sc, f.Field)
		}
		str, _ := rec[f.Field].(string)
		return strings.Contains(strings.ToLower(str), strings.ToLower(f.Value)), nil
	case store.Not:
		ok, err := s.match(sc, rec, f.Filter)
		return !ok, err
	case store.And:
		for _, sub := range f {
			ok, err := s.match(sc, rec, sub)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case store.Or:
		for _, sub := range f {
			ok, err := s.match(sc, rec, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case store.Related:
		if !sc.HasColumn(f.Field) {
			return false, unknownField(sc, f.Field)
		}
		target, ok := s.schemas[f.Table]
		if !ok || !target.HasColumn(f.Column) {
			return false, unknownField(target, f.Column)
		}
		related, err := s.selectRows(target, f.Where)
		if err != nil {
			return false, err
		}
		for _, other := range related {
			if equalValues(rec[f.Field], other[f.Column]) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("memory: unsupported filter %T", f)
	}
}

func unknownField(sc store.Schema, field string) error {
	return fmt.Errorf("%w: %s.%s", store.ErrUnknownField, sc.Table, field)
}

func sortRows(sc store.Schema, rows []store.Record, order []store.Order) error {
	for _, o := range order {
		if !sc.HasColumn(o.Field) {
			return unknownField(sc, o.Field)
		}
	}
	if len(order) == 0 {
		return nil
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			c := compareValues(rows[i][o.Field], rows[j][o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}
