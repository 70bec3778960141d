package mural

import (
	"strings"

	"github.com/iliyamo/partner-portal/internal/recordstore"
)

// Shape is the storage layout of a notice's read-by column.
type Shape int

const (
	// StringList holds plain names or emails.
	StringList Shape = iota
	// ContactList holds objects carrying at least an "email" key.
	ContactList
)

func (s Shape) String() string {
	if s == ContactList {
		return "contacts"
	}
	return "strings"
}

// ReadBy is the decoded read-by column.  Exactly one of names and contacts
// is in use, according to shape.  Contact objects are kept verbatim so that
// extra keys (id, name) survive a write back.
type ReadBy struct {
	shape    Shape
	text     bool // column is a single text cell rather than a list
	names    []string
	contacts []map[string]any
}

// DecodeReadBy inspects the raw column value once.  The shape is taken from
// the first element; a missing or empty column decodes as an empty string
// list.  A plain text cell is split on commas and newlines and keeps its text
// form when encoded.
func DecodeReadBy(raw any) ReadBy {
	switch t := raw.(type) {
	case string:
		rb := ReadBy{shape: StringList, text: true}
		for _, p := range strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == '\n' }) {
			if p = strings.TrimSpace(p); p != "" {
				rb.names = append(rb.names, p)
			}
		}
		return rb
	case []string:
		return ReadBy{shape: StringList, names: append([]string(nil), t...)}
	case []map[string]any:
		items := make([]any, len(t))
		for i, m := range t {
			items[i] = m
		}
		return decodeList(items)
	case []any:
		return decodeList(t)
	}
	return ReadBy{shape: StringList}
}

func decodeList(items []any) ReadBy {
	if len(items) == 0 {
		return ReadBy{shape: StringList}
	}
	if _, ok := items[0].(map[string]any); ok {
		rb := ReadBy{shape: ContactList, contacts: make([]map[string]any, 0, len(items))}
		for _, it := range items {
			switch v := it.(type) {
			case map[string]any:
				rb.contacts = append(rb.contacts, v)
			case string:
				if v != "" {
					rb.contacts = append(rb.contacts, map[string]any{"email": v})
				}
			}
		}
		return rb
	}
	rb := ReadBy{shape: StringList, names: make([]string, 0, len(items))}
	f := recordstore.Fields{}
	for _, it := range items {
		f["v"] = it
		if s := f.String("v"); s != "" {
			rb.names = append(rb.names, s)
		}
	}
	return rb
}

// Shape reports the detected column layout.
func (rb ReadBy) Shape() Shape { return rb.shape }

// Len returns the number of entries.
func (rb ReadBy) Len() int {
	if rb.shape == ContactList {
		return len(rb.contacts)
	}
	return len(rb.names)
}

// Contains reports whether the viewer is listed.  String entries match the
// name or the email, contact entries match the email; both ignore case.
func (rb ReadBy) Contains(email, name string) bool {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if rb.shape == ContactList {
		if email == "" {
			return false
		}
		for _, c := range rb.contacts {
			if e, _ := c["email"].(string); strings.EqualFold(strings.TrimSpace(e), email) {
				return true
			}
		}
		return false
	}
	for _, n := range rb.names {
		n = strings.TrimSpace(n)
		if (name != "" && strings.EqualFold(n, name)) || (email != "" && strings.EqualFold(n, email)) {
			return true
		}
	}
	return false
}

// With returns the column with the viewer appended, and whether anything
// changed.  String lists receive the name (or the email when no name is
// known); contact lists receive {"email": email}.
func (rb ReadBy) With(email, name string) (ReadBy, bool) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if rb.Contains(email, name) {
		return rb, false
	}
	out := ReadBy{shape: rb.shape, text: rb.text}
	if rb.shape == ContactList {
		if email == "" {
			return rb, false
		}
		out.contacts = append(append([]map[string]any(nil), rb.contacts...), map[string]any{"email": email})
		return out, true
	}
	entry := name
	if entry == "" {
		entry = email
	}
	if entry == "" {
		return rb, false
	}
	out.names = append(append([]string(nil), rb.names...), entry)
	return out, true
}

// Encode returns the value to write back, in the column's own shape.
func (rb ReadBy) Encode() any {
	if rb.shape == ContactList {
		out := make([]any, len(rb.contacts))
		for i, c := range rb.contacts {
			out[i] = c
		}
		return out
	}
	if rb.text {
		return strings.Join(rb.names, ", ")
	}
	out := make([]any, len(rb.names))
	for i, n := range rb.names {
		out[i] = n
	}
	return out
}
