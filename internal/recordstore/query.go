package recordstore

import "strings"

// Filter is a predicate over a record's fields.  Only the subset the portal
// needs is supported: exact equality, case-insensitive equality and AND.
type Filter interface {
	// Match evaluates the predicate in process.  Backends that push the
	// filter down to the server render it instead.
	Match(f Fields) bool
}

// Eq matches records whose field equals Value.
type Eq struct {
	Field string
	Value any
}

// EqFold matches records whose field equals Value ignoring case.
type EqFold struct {
	Field string
	Value string
}

// And matches when every filter matches.  An empty And matches everything.
type And []Filter

func (e Eq) Match(f Fields) bool { return f.String(e.Field) == toString(e.Value) }

func (e EqFold) Match(f Fields) bool { return strings.EqualFold(f.String(e.Field), e.Value) }

func (a And) Match(f Fields) bool {
	for _, c := range a {
		if c != nil && !c.Match(f) {
			return false
		}
	}
	return true
}

// FilterFields lists the field names referenced by a filter.
func FilterFields(flt Filter) []string {
	switch t := flt.(type) {
	case Eq:
		return []string{t.Field}
	case EqFold:
		return []string{t.Field}
	case And:
		var out []string
		for _, c := range t {
			out = append(out, FilterFields(c)...)
		}
		return out
	}
	return nil
}

// Sort orders results by one field.
type Sort struct {
	Field string
	Desc  bool
}

// Query selects records from a table.  The zero Query returns every row in
// store order.
type Query struct {
	Filter     Filter
	MaxRecords int
	Sort       []Sort
}

// SortDesc is shorthand for a single descending sort.
func SortDesc(field string) []Sort { return []Sort{{Field: field, Desc: true}} }
