package recordstore

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Fields holds the decoded column values of a record.  Values keep the
// shapes produced by encoding/json: string, float64, bool, []any and
// map[string]any.  The accessors never fail; a missing or mistyped value
// yields the zero value so that mappers can substitute their own defaults.
type Fields map[string]any

// Attachment is an uploaded file referenced by an attachment column.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Has reports whether the field is present and non-nil.
func (f Fields) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

// String returns a text value.  Numbers and booleans are formatted; lists
// are joined with ", ".
func (f Fields) String(key string) string {
	return toString(f[key])
}

// FirstString returns the first non-empty text value among keys.
func (f Fields) FirstString(keys ...string) string {
	for _, k := range keys {
		if s := f.String(k); s != "" {
			return s
		}
	}
	return ""
}

// Float returns a numeric value, 0 when missing, NaN or not a number.
// Lookup columns that wrap a single number in a list are unwrapped.
func (f Fields) Float(key string) float64 {
	var n float64
	switch t := f[key].(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case json.Number:
		n, _ = t.Float64()
	case string:
		n, _ = strconv.ParseFloat(strings.TrimSpace(t), 64)
	case []any:
		if len(t) > 0 {
			return Fields{"v": t[0]}.Float("v")
		}
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

// Int returns the value truncated to an int.
func (f Fields) Int(key string) int {
	return int(f.Float(key))
}

// Bool returns a checkbox value.  Text values such as "sim", "yes" or
// "true" are accepted for columns configured as single select.
func (f Fields) Bool(key string) bool {
	switch t := f[key].(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "sim", "y", "s", "on":
			return true
		}
	case []any:
		if len(t) > 0 {
			return Fields{"v": t[0]}.Bool("v")
		}
	}
	return false
}

// Strings returns a multi-value column as a string slice.  A single text
// value becomes a one-element slice.
func (f Fields) Strings(key string) []string {
	switch t := f[key].(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s := toString(v); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	}
	return nil
}

// Attachments returns the files of an attachment column.
func (f Fields) Attachments(key string) []Attachment {
	list, ok := f[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Attachment, 0, len(list))
	for _, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		a := Attachment{URL: toString(m["url"]), Filename: toString(m["filename"])}
		if a.URL != "" {
			out = append(out, a)
		}
	}
	return out
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := toString(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		// collaborator/linked objects
		for _, k := range []string{"name", "email", "id"} {
			if s, ok := t[k].(string); ok && s != "" {
				return s
			}
		}
		return ""
	default:
		return fmt.Sprint(t)
	}
}
