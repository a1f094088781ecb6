package store

// Filter is a backend-neutral boolean expression over a Record.
type Filter interface {
	isFilter()
}

// Eq matches Field == Value. A nil Value matches a null or missing field.
type Eq struct {
	Field string
	Value any
}

// In matches Field equal to any of Values. An empty list matches nothing.
type In struct {
	Field  string
	Values []any
}

// Contains is a case-insensitive substring match on a text field.
type Contains struct {
	Field string
	Value string
}

// Not negates a filter.
type Not struct {
	Filter Filter
}

// And is satisfied when every member is. An empty And matches everything.
type And []Filter

// Or is satisfied when any member is. An empty Or matches nothing.
type Or []Filter

// Related matches rows whose Field value appears in Column of the rows of
// Table selected by Where (a semi-join, e.g. "team_id in teams I belong to").
type Related struct {
	Field  string
	Table  string
	Column string
	Where  Filter
}

func (Eq) isFilter()       {}
func (In) isFilter()       {}
func (Contains) isFilter() {}
func (Not) isFilter()      {}
func (And) isFilter()      {}
func (Or) isFilter()       {}
func (Related) isFilter()  {}

// All conjoins the non-nil filters. It never drops a member, so a tenant
// filter combined with a search filter always stays in force.
func All(filters ...Filter) Filter {
	out := make(And, 0, len(filters))
	for _, f := range filters {
		if f == nil {
			continue
		}
		out = append(out, f)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// Any disjoins the non-nil filters.
func Any(filters ...Filter) Filter {
	out := make(Or, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
