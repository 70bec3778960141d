package airtable

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/partner-portal/internal/recordstore"
)

// Formula renders a filter as a filterByFormula expression.  String values
// are single-quoted with backslash escaping, so user-supplied emails and
// ids cannot break out of the literal.
func Formula(f recordstore.Filter) string {
	switch t := f.(type) {
	case recordstore.Eq:
		return fmt.Sprintf("%s = %s", fieldRef(t.Field), literal(t.Value))
	case recordstore.EqFold:
		return fmt.Sprintf("LOWER(%s) = LOWER(%s)", fieldRef(t.Field), literal(t.Value))
	case recordstore.And:
		parts := make([]string, 0, len(t))
		for _, c := range t {
			if c != nil {
				parts = append(parts, Formula(c))
			}
		}
		switch len(parts) {
		case 0:
			return "TRUE()"
		case 1:
			return parts[0]
		}
		return "AND(" + strings.Join(parts, ", ") + ")"
	}
	return "TRUE()"
}

func fieldRef(name string) string { return "{" + name + "}" }

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func literal(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "TRUE()"
		}
		return "FALSE()"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return "'" + quoteEscaper.Replace(t) + "'"
	}
	return "'" + quoteEscaper.Replace(fmt.Sprint(v)) + "'"
}
