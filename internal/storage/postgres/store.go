package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/baseplate/tracker/internal/core/store"
)

const uniqueViolation = "23505"

// Store exposes every declared table as a store.Model backed by SQL.
type Store struct {
	db      *sql.DB
	schemas map[string]store.Schema
}

func NewStore(client *Client, schemas []store.Schema) *Store {
	s := &Store{
		db:      client.DB,
		schemas: make(map[string]store.Schema, len(schemas)),
	}
	for _, sc := range schemas {
		s.schemas[sc.Table] = sc
	}
	return s
}

func (s *Store) Model(table string) store.Model {
	sc, ok := s.schemas[table]
	if !ok {
		panic(fmt.Sprintf("postgres: table not declared: %s", table))
	}
	return &Model{store: s, schema: sc}
}

// Next increments the counter for scope in a single statement, so
// concurrent callers never observe the same value.
func (s *Store) Next(ctx context.Context, scope string) (int64, error) {
	query := `
		INSERT INTO sequences (scope, value) VALUES ($1, 1)
		ON CONFLICT (scope) DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`
	var value int64
	if err := s.db.QueryRowContext(ctx, query, scope).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", scope, err)
	}
	return value, nil
}

type Model struct {
	store  *Store
	schema store.Schema
}

func (m *Model) Name() string { return m.schema.Table }

func (m *Model) Count(ctx context.Context, where store.Filter) (int, error) {
	c := &compiler{schemas: m.store.schemas}
	clause, err := c.where(m.schema, where)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", pq.QuoteIdentifier(m.schema.Table), clause)

	var n int
	if err := m.store.db.QueryRowContext(ctx, query, c.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", m.schema.Table, err)
	}
	return n, nil
}

func (m *Model) FindMany(ctx context.Context, q store.Query) ([]store.Record, error) {
	return m.store.findMany(ctx, m.schema, q)
}

func (m *Model) FindFirst(ctx context.Context, q store.Query) (store.Record, error) {
	q.Take = 1
	rows, err := m.store.findMany(ctx, m.schema, q)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (m *Model) Create(ctx context.Context, data store.Record) (store.Record, error) {
	values := m.schema.Writable(data)
	if id, _ := values["id"].(string); id == "" {
		values["id"] = uuid.NewString()
	}

	c := &compiler{}
	cols := make([]string, 0, len(values))
	params := make([]string, 0, len(values))
	for _, col := range m.schema.Columns {
		v, ok := values[col]
		if !ok {
			continue
		}
		cols = append(cols, pq.QuoteIdentifier(col))
		params = append(params, c.arg(v))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		pq.QuoteIdentifier(m.schema.Table), strings.Join(cols, ", "), strings.Join(params, ", "))

	rows, err := m.store.query(ctx, query, c.args...)
	if err != nil {
		return nil, translate(err, m.schema.Table)
	}
	return rows[0], nil
}

func (m *Model) Update(ctx context.Context, id string, data store.Record) (store.Record, error) {
	values := m.schema.Writable(data)
	delete(values, "id")

	c := &compiler{}
	sets := make([]string, 0, len(values)+1)
	for _, col := range m.schema.Columns {
		v, ok := values[col]
		if !ok {
			continue
		}
		sets = append(sets, pq.QuoteIdentifier(col)+" = "+c.arg(v))
	}
	if m.schema.Timestamps {
		sets = append(sets, `"updated_at" = now()`)
	}
	if len(sets) == 0 {
		rec, err := m.FindFirst(ctx, store.Query{Where: store.Eq{Field: "id", Value: id}})
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, store.ErrNoRecord
		}
		return rec, nil
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s RETURNING *",
		pq.QuoteIdentifier(m.schema.Table), strings.Join(sets, ", "), c.arg(id))

	rows, err := m.store.query(ctx, query, c.args...)
	if err != nil {
		return nil, translate(err, m.schema.Table)
	}
	if len(rows) == 0 {
		return nil, store.ErrNoRecord
	}
	return rows[0], nil
}

func (m *Model) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", pq.QuoteIdentifier(m.schema.Table))
	result, err := m.store.db.ExecContext(ctx, query, id)
	if err != nil {
		return translate(err, m.schema.Table)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNoRecord
	}
	return nil
}

func (s *Store) findMany(ctx context.Context, sc store.Schema, q store.Query) ([]store.Record, error) {
	c := &compiler{schemas: s.schemas}
	clause, err := c.where(sc, q.Where)
	if err != nil {
		return nil, err
	}
	order, err := c.orderBy(sc, q.OrderBy)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s%s", pq.QuoteIdentifier(sc.Table), clause, order)
	if q.Take > 0 {
		query += " LIMIT " + c.arg(q.Take)
	}
	if q.Skip > 0 {
		query += " OFFSET " + c.arg(q.Skip)
	}

	rows, err := s.query(ctx, query, c.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", sc.Table, err)
	}
	if err := s.loadIncludes(ctx, sc, rows, q.Include); err != nil {
		return nil, err
	}
	return rows, nil
}

// loadIncludes fetches each relation in one batched query per level
// rather than once per parent row.
func (s *Store) loadIncludes(ctx context.Context, sc store.Schema, rows []store.Record, includes []store.Include) error {
	for _, inc := range includes {
		rel, ok := sc.Relations[inc.Name]
		if !ok {
			return fmt.Errorf("%w: %s.%s", store.ErrUnknownRelation, sc.Table, inc.Name)
		}
		target, ok := s.schemas[rel.Table]
		if !ok {
			return fmt.Errorf("%w: %s.%s", store.ErrUnknownRelation, sc.Table, inc.Name)
		}

		seen := make(map[string]bool)
		var keys []any
		for _, rec := range rows {
			if rec[rel.LocalKey] == nil {
				continue
			}
			k := fmt.Sprint(rec[rel.LocalKey])
			if !seen[k] {
				seen[k] = true
				keys = append(keys, rec[rel.LocalKey])
			}
		}

		grouped := make(map[string][]store.Record)
		if len(keys) > 0 {
			related, err := s.findMany(ctx, target, store.Query{
				Where:   store.All(store.In{Field: rel.ForeignKey, Values: keys}, inc.Where),
				OrderBy: inc.OrderBy,
				Include: inc.Include,
			})
			if err != nil {
				return err
			}
			for _, r := range related {
				target.Conceal(r)
				k := fmt.Sprint(r[rel.ForeignKey])
				grouped[k] = append(grouped[k], r)
			}
		}

		for _, rec := range rows {
			var matched []store.Record
			if rec[rel.LocalKey] != nil {
				matched = grouped[fmt.Sprint(rec[rel.LocalKey])]
			}
			if rel.Many {
				if matched == nil {
					matched = []store.Record{}
				}
				rec[inc.Name] = matched
				continue
			}
			if len(matched) > 0 {
				rec[inc.Name] = matched[0]
			} else {
				rec[inc.Name] = nil
			}
		}
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []store.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(store.Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
			} else {
				rec[col] = values[i]
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func translate(err error, table string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s(%s)", store.ErrConflict, table, pqErr.Constraint)
	}
	return fmt.Errorf("failed to write %s: %w", table, err)
}
