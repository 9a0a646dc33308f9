package workflow

import (
	"fmt"
	"reflect"
	"strings"
)

// FormatValue formats a single value for display to the LLM. Pointer
// types are dereferenced so decimals scanned as pointers print as numbers.
func FormatValue(v any) string {
	if v == nil {
		return ""
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}
		return FormatValue(rv.Elem().Interface())
	}

	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("%v", val)
	case float32:
		return fmt.Sprintf("%v", val)
	case string:
		return val
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FormatResultSet renders rows as a pipe-separated table.
func FormatResultSet(rs ResultSet, maxRows int) string {
	if len(rs.Rows) == 0 {
		return "Query returned no results."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Results (%d rows):\n", len(rs.Rows))
	sb.WriteString("Columns: " + strings.Join(rs.Columns, " | ") + "\n")
	sb.WriteString(strings.Repeat("-", 40) + "\n")

	n := min(maxRows, len(rs.Rows))
	for i := range n {
		row := rs.Rows[i]
		values := make([]string, 0, len(rs.Columns))
		for _, col := range rs.Columns {
			values = append(values, FormatValue(row[col]))
		}
		sb.WriteString(strings.Join(values, " | ") + "\n")
	}
	if len(rs.Rows) > n {
		fmt.Fprintf(&sb, "... and %d more rows\n", len(rs.Rows)-n)
	}
	return sb.String()
}
