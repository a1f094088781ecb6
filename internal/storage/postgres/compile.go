package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/baseplate/tracker/internal/core/store"
)

// compiler turns store filters into a WHERE clause with positional
// parameters. Field names are checked against the table schema before
// they are quoted into the statement.
type compiler struct {
	schemas map[string]store.Schema
	args    []any
}

func (c *compiler) arg(v any) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", len(c.args))
}

func (c *compiler) column(sc store.Schema, field string) (string, error) {
	if !sc.HasColumn(field) {
		return "", fmt.Errorf("%w: %s.%s", store.ErrUnknownField, sc.Table, field)
	}
	return pq.QuoteIdentifier(field), nil
}

func (c *compiler) where(sc store.Schema, f store.Filter) (string, error) {
	switch f := f.(type) {
	case nil:
		return "TRUE", nil
	case store.Eq:
		col, err := c.column(sc, f.Field)
		if err != nil {
			return "", err
		}
		if f.Value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + c.arg(f.Value), nil
	case store.In:
		col, err := c.column(sc, f.Field)
		if err != nil {
			return "", err
		}
		if len(f.Values) == 0 {
			return "FALSE", nil
		}
		params := make([]string, len(f.Values))
		for i, v := range f.Values {
			params[i] = c.arg(v)
		}
		return col + " IN (" + strings.Join(params, ", ") + ")", nil
	case store.Contains:
		col, err := c.column(sc, f.Field)
		if err != nil {
			return "", err
		}
		return col + " ILIKE " + c.arg("%"+escapeLike(f.Value)+"%"), nil
	case store.Not:
		inner, err := c.where(sc, f.Filter)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case store.And:
		return c.join(sc, f, " AND ", "TRUE")
	case store.Or:
		return c.join(sc, f, " OR ", "FALSE")
	case store.Related:
		col, err := c.column(sc, f.Field)
		if err != nil {
			return "", err
		}
		target, ok := c.schemas[f.Table]
		if !ok {
			return "", fmt.Errorf("%w: %s", store.ErrUnknownField, f.Table)
		}
		inner, err := c.column(target, f.Column)
		if err != nil {
			return "", err
		}
		sub, err := c.where(target, f.Where)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE %s)",
			col, inner, pq.QuoteIdentifier(target.Table), sub), nil
	default:
		return "", fmt.Errorf("postgres: unsupported filter %T", f)
	}
}

func (c *compiler) join(sc store.Schema, filters []store.Filter, op, empty string) (string, error) {
	if len(filters) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(filters))
	for _, sub := range filters {
		part, err := c.where(sc, sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, op) + ")", nil
}

func (c *compiler) orderBy(sc store.Schema, order []store.Order) (string, error) {
	if len(order) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(order))
	for _, o := range order {
		col, err := c.column(sc, o.Field)
		if err != nil {
			return "", err
		}
		if o.Desc {
			parts = append(parts, col+" DESC NULLS LAST")
		} else {
			parts = append(parts, col+" ASC NULLS FIRST")
		}
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
