// Package visualization picks a chart type for a query result from its
// shape alone: row count, column names and value types.
package visualization

import (
	"reflect"
	"sort"
)

type Type string

const (
	TypeEmpty      Type = "empty"
	TypeKPI        Type = "kpi"
	TypeLine       Type = "line"
	TypeArea       Type = "area"
	TypeBar        Type = "bar"
	TypeGroupedBar Type = "grouped_bar"
	TypeHistogram  Type = "histogram"
	TypeTable      Type = "table"
)

const (
	lineMaxRows = 10
	barMaxRows  = 20
	histMinRows = 20
)

// DateColumns are the column names treated as a time axis.
var DateColumns = map[string]bool{
	"date":          true,
	"voucher_date":  true,
	"movement_date": true,
	"created_at":    true,
}

// Spec tells the frontend how to render a result.
type Spec struct {
	Type    Type     `json:"type"`
	Value   string   `json:"value,omitempty"`
	Label   string   `json:"label,omitempty"`
	X       string   `json:"x,omitempty"`
	Y       string   `json:"y,omitempty"`
	Group   string   `json:"group,omitempty"`
	Columns []string `json:"columns,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// Select classifies a result. Rules are tried in order and the first match
// wins. columns gives the select order; when nil it is taken from the
// first row's keys in sorted order.
func Select(columns []string, rows []map[string]any) Spec {
	if len(rows) == 0 {
		return Spec{Type: TypeEmpty, Reason: "No data returned"}
	}
	if columns == nil {
		for k := range rows[0] {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}

	var numeric, categorical []string
	for _, c := range columns {
		if numericColumn(c, rows) {
			numeric = append(numeric, c)
		} else {
			categorical = append(categorical, c)
		}
	}
	n := len(rows)

	var dateCol string
	for _, c := range columns {
		if DateColumns[c] {
			dateCol = c
			break
		}
	}

	switch {
	case n == 1 && len(columns) == 1 && len(numeric) == 1:
		return Spec{Type: TypeKPI, Value: numeric[0]}
	case n == 1 && len(columns) == 2 && len(numeric) == 1:
		return Spec{Type: TypeKPI, Label: categorical[0], Value: numeric[0]}
	case dateCol != "" && len(numeric) == 1 && n <= lineMaxRows:
		return Spec{Type: TypeLine, X: dateCol, Y: numeric[0]}
	case dateCol != "" && len(numeric) == 1:
		return Spec{Type: TypeArea, X: dateCol, Y: numeric[0]}
	case len(columns) == 2 && len(numeric) == 1 && n <= barMaxRows:
		return Spec{Type: TypeBar, X: categorical[0], Y: numeric[0]}
	case len(columns) == 3 && len(numeric) == 1:
		return Spec{Type: TypeGroupedBar, X: categorical[0], Group: categorical[1], Y: numeric[0]}
	case len(columns) == 1 && len(numeric) == 1 && n > histMinRows:
		return Spec{Type: TypeHistogram, Value: numeric[0]}
	}
	return Spec{Type: TypeTable, Columns: append([]string(nil), columns...)}
}

// A column is numeric when it has at least one non-null value and every
// non-null value is an integer or float.
func numericColumn(col string, rows []map[string]any) bool {
	seen := false
	for _, r := range rows {
		v := r[col]
		if v == nil {
			continue
		}
		if !IsNumeric(v) {
			return false
		}
		seen = true
	}
	return seen
}

// IsNumeric reports whether v holds a Go integer or floating point value.
// Strings that look like numbers are not numeric.
func IsNumeric(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
