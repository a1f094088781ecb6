package store

// Relation describes how one table joins to another. LocalKey on the owning
// row is matched against ForeignKey on the target rows.
type Relation struct {
	Table      string
	LocalKey   string
	ForeignKey string
	Many       bool
}

// Schema is the structural description a backend needs for one table.
type Schema struct {
	Table      string
	Columns    []string
	Relations  map[string]Relation
	Unique     [][]string
	Timestamps bool
	// Hidden columns are readable through the table's own model but never
	// appear on rows loaded as a relation of another table.
	Hidden []string
}

// HasColumn reports whether name is a declared column.
func (s Schema) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Writable strips data down to declared columns, dropping system-managed
// ones (id is kept so callers may choose it).
func (s Schema) Writable(data Record) Record {
	out := make(Record, len(data))
	for k, v := range data {
		if k == "created_at" || k == "updated_at" {
			continue
		}
		if s.HasColumn(k) {
			out[k] = v
		}
	}
	return out
}

// Conceal removes the hidden columns from rec in place.
func (s Schema) Conceal(rec Record) {
	for _, c := range s.Hidden {
		delete(rec, c)
	}
}
