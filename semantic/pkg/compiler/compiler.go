// Package compiler renders validated intents into parameterized SQL.
//
// Compile is pure: the same intent always produces byte-identical output.
// Every identifier in the output comes from the registry the intent was
// validated against; filter values are bound as positional parameters.
package compiler

import (
	"fmt"
	"strings"

	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/governance"
)

// Query is compiled SQL plus its positional arguments ($1, $2, ...).
type Query struct {
	SQL  string
	Args []any
}

// CompileError signals a validated intent that could not be rendered. It
// indicates a broken invariant between the validator and the registry.
type CompileError struct {
	Msg string
}

func (e *CompileError) Error() string { return "compile: " + e.Msg }

func Compile(v *governance.ValidatedIntent) (Query, error) {
	if v == nil {
		return Query{}, &CompileError{Msg: "nil intent"}
	}
	base := v.BaseModel()
	metric := v.Metric()
	if base == nil || metric == nil {
		return Query{}, &CompileError{Msg: "intent has no metric"}
	}
	reg := v.Registry()
	dims := v.Dimensions()
	filters := v.Filters()

	selects := make([]string, 0, len(dims)+1)
	selects = append(selects, fmt.Sprintf("%s AS %s", metric.Expression, metric.Name))
	groupBy := make([]string, 0, len(dims))
	for _, d := range dims {
		selects = append(selects, fmt.Sprintf("%s AS %s", d.Ref, d.Name))
		groupBy = append(groupBy, d.Ref)
	}

	var joins []string
	joined := map[string]bool{base.Name: true}
	join := func(model string) error {
		if joined[model] {
			return nil
		}
		m, err := reg.GetModel(model)
		if err != nil {
			return &CompileError{Msg: err.Error()}
		}
		rel, ok := reg.FindRelationship(base.Name, model)
		if !ok {
			return &CompileError{Msg: fmt.Sprintf("no relationship between %s and %s", base.Name, model)}
		}
		joins = append(joins, fmt.Sprintf("JOIN %s ON %s", m.Table, rel.Condition))
		joined[model] = true
		return nil
	}
	for _, d := range dims {
		if err := join(d.Model); err != nil {
			return Query{}, err
		}
	}

	var where []string
	var args []any
	for _, f := range filters {
		if err := join(f.Dimension.Model); err != nil {
			return Query{}, err
		}
		args = append(args, f.Value)
		where = append(where, fmt.Sprintf("%s = $%d", f.Dimension.Ref, len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selects, ", "))
	sb.WriteString("\nFROM ")
	sb.WriteString(base.Table)
	for _, j := range joins {
		sb.WriteString("\n")
		sb.WriteString(j)
	}
	if len(where) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	if len(groupBy) > 0 {
		sb.WriteString("\nGROUP BY ")
		sb.WriteString(strings.Join(groupBy, ", "))
	}

	return Query{SQL: sb.String(), Args: args}, nil
}
