package registry

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	tableRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
)

func validName(name string) bool {
	return identRe.MatchString(name) && !IsReservedWord(name)
}

func validTable(table string) bool {
	if !tableRe.MatchString(table) {
		return false
	}
	for _, part := range strings.Split(table, ".") {
		if IsReservedWord(part) {
			return false
		}
	}
	return true
}

// Registry is the immutable, validated view of a semantic model. It is
// safe for concurrent use.
type Registry struct {
	source        string
	models        []*Model
	metrics       []*Metric
	dimensions    []*Dimension
	relationships []*Relationship

	modelsByName     map[string]*Model
	metricsByName    map[string]*Metric
	dimensionsByName map[string]*Dimension
}

// Load reads and validates a semantic model file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SchemaLoadError{Source: path, Err: err}
	}
	reg, err := parse(path, data)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Parse validates a semantic model held in memory.
func Parse(data []byte) (*Registry, error) {
	return parse("<inline>", data)
}

func parse(source string, data []byte) (*Registry, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &SchemaLoadError{Source: source, Err: fmt.Errorf("failed to parse: %w", err)}
	}
	return build(source, doc)
}

// New validates an already decoded document.
func New(doc Document) (*Registry, error) {
	return build("<document>", doc)
}

func build(source string, doc Document) (*Registry, error) {
	fail := func(format string, args ...any) (*Registry, error) {
		return nil, &SchemaLoadError{Source: source, Err: fmt.Errorf(format, args...)}
	}

	if len(doc.Models) == 0 {
		return fail("no models declared")
	}
	if len(doc.Metrics) == 0 {
		return fail("no metrics declared")
	}

	r := &Registry{
		source:           source,
		modelsByName:     make(map[string]*Model, len(doc.Models)),
		metricsByName:    make(map[string]*Metric, len(doc.Metrics)),
		dimensionsByName: make(map[string]*Dimension, len(doc.Dimensions)),
	}

	tables := make(map[string]string)
	for _, ms := range doc.Models {
		if !validName(ms.Name) {
			return fail("model name %q is not a valid identifier", ms.Name)
		}
		if _, dup := r.modelsByName[ms.Name]; dup {
			return fail("model %q declared twice", ms.Name)
		}
		if !validTable(ms.Table) {
			return fail("model %q: table %q is not a valid identifier", ms.Name, ms.Table)
		}
		if other, dup := tables[ms.Table]; dup {
			return fail("models %q and %q share table %q", other, ms.Name, ms.Table)
		}
		tables[ms.Table] = ms.Name
		if len(ms.Columns) == 0 {
			return fail("model %q declares no columns", ms.Name)
		}

		m := &Model{
			Name:        ms.Name,
			Table:       ms.Table,
			PrimaryKey:  ms.PrimaryKey,
			Description: ms.Description,
			columns:     make(map[string]Column, len(ms.Columns)),
		}
		for _, cs := range ms.Columns {
			phys := cs.Column
			if phys == "" {
				phys = cs.Name
			}
			if !identRe.MatchString(cs.Name) || !identRe.MatchString(phys) {
				return fail("model %q: column %q is not a valid identifier", ms.Name, cs.Name)
			}
			if _, dup := m.columns[cs.Name]; dup {
				return fail("model %q: column %q declared twice", ms.Name, cs.Name)
			}
			c := Column{Name: cs.Name, Physical: phys, Type: cs.Type, Description: cs.Description}
			m.columns[cs.Name] = c
			m.Columns = append(m.Columns, c)
		}
		if m.PrimaryKey != "" {
			if _, ok := m.columns[m.PrimaryKey]; !ok {
				return fail("model %q: primary key %q is not a declared column", ms.Name, m.PrimaryKey)
			}
		}
		r.models = append(r.models, m)
		r.modelsByName[m.Name] = m
	}

	for _, ms := range doc.Metrics {
		if !validName(ms.Name) {
			return fail("metric name %q is not a valid identifier", ms.Name)
		}
		if _, dup := r.metricsByName[ms.Name]; dup {
			return fail("metric %q declared twice", ms.Name)
		}
		model, ok := r.modelsByName[ms.Model]
		if !ok {
			return fail("metric %q references undeclared model %q", ms.Name, ms.Model)
		}
		expr, err := RenderExpression(ms.Expression, model)
		if err != nil {
			return fail("metric %q: %w", ms.Name, err)
		}
		m := &Metric{Name: ms.Name, Model: ms.Model, Expression: expr, Description: ms.Description}
		r.metrics = append(r.metrics, m)
		r.metricsByName[m.Name] = m
	}

	for _, ds := range doc.Dimensions {
		if !validName(ds.Name) {
			return fail("dimension name %q is not a valid identifier", ds.Name)
		}
		if _, dup := r.dimensionsByName[ds.Name]; dup {
			return fail("dimension %q declared twice", ds.Name)
		}
		if _, clash := r.metricsByName[ds.Name]; clash {
			return fail("dimension %q has the same name as a metric", ds.Name)
		}
		model, ok := r.modelsByName[ds.Model]
		if !ok {
			return fail("dimension %q references undeclared model %q", ds.Name, ds.Model)
		}
		col, ok := model.Column(ds.Column)
		if !ok {
			return fail("dimension %q references undeclared column %s.%s", ds.Name, ds.Model, ds.Column)
		}
		d := &Dimension{
			Name:        ds.Name,
			Model:       ds.Model,
			Column:      ds.Column,
			Ref:         model.Ref(col),
			Description: ds.Description,
		}
		r.dimensions = append(r.dimensions, d)
		r.dimensionsByName[d.Name] = d
	}

	for i, rs := range doc.Relationships {
		from, ok := r.modelsByName[rs.From]
		if !ok {
			return fail("relationship %d references undeclared model %q", i, rs.From)
		}
		to, ok := r.modelsByName[rs.To]
		if !ok {
			return fail("relationship %d references undeclared model %q", i, rs.To)
		}
		if from == to {
			return fail("relationship %d joins model %q to itself", i, rs.From)
		}
		fc, ok := from.Column(rs.FromColumn)
		if !ok {
			return fail("relationship %d references undeclared column %s.%s", i, rs.From, rs.FromColumn)
		}
		tc, ok := to.Column(rs.ToColumn)
		if !ok {
			return fail("relationship %d references undeclared column %s.%s", i, rs.To, rs.ToColumn)
		}
		for _, existing := range r.relationships {
			if existing.Connects(rs.From, rs.To) {
				return fail("more than one relationship between %q and %q", rs.From, rs.To)
			}
		}
		r.relationships = append(r.relationships, &Relationship{
			From:       rs.From,
			FromColumn: rs.FromColumn,
			To:         rs.To,
			ToColumn:   rs.ToColumn,
			Condition:  from.Ref(fc) + " = " + to.Ref(tc),
		})
	}

	return r, nil
}

// Source is the path (or a placeholder) the registry was loaded from.
func (r *Registry) Source() string { return r.source }

func (r *Registry) GetModel(name string) (*Model, error) {
	if m, ok := r.modelsByName[name]; ok {
		return m, nil
	}
	return nil, &NotFoundError{Kind: "model", Name: name}
}

func (r *Registry) GetMetric(name string) (*Metric, error) {
	if m, ok := r.metricsByName[name]; ok {
		return m, nil
	}
	return nil, &NotFoundError{Kind: "metric", Name: name}
}

func (r *Registry) GetDimension(name string) (*Dimension, error) {
	if d, ok := r.dimensionsByName[name]; ok {
		return d, nil
	}
	return nil, &NotFoundError{Kind: "dimension", Name: name}
}

// FindRelationship returns the approved relationship between two models,
// regardless of the direction it was declared in.
func (r *Registry) FindRelationship(a, b string) (*Relationship, bool) {
	for _, rel := range r.relationships {
		if rel.Connects(a, b) {
			return rel, true
		}
	}
	return nil, false
}

// Models, Metrics, Dimensions and Relationships return declarations in
// file order. Callers must not modify the returned values.
func (r *Registry) Models() []*Model               { return r.models }
func (r *Registry) Metrics() []*Metric             { return r.metrics }
func (r *Registry) Dimensions() []*Dimension       { return r.dimensions }
func (r *Registry) Relationships() []*Relationship { return r.relationships }

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Describe renders the catalog as plain text for the extraction prompt.
func (r *Registry) Describe() string {
	var sb strings.Builder
	sb.WriteString("METRICS:\n")
	for _, m := range r.metrics {
		fmt.Fprintf(&sb, "- %s (model: %s)", m.Name, m.Model)
		if m.Description != "" {
			fmt.Fprintf(&sb, ": %s", m.Description)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nDIMENSIONS:\n")
	for _, d := range r.dimensions {
		fmt.Fprintf(&sb, "- %s (model: %s)", d.Name, d.Model)
		if d.Description != "" {
			fmt.Fprintf(&sb, ": %s", d.Description)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nRELATIONSHIPS:\n")
	if len(r.relationships) == 0 {
		sb.WriteString("- none\n")
	}
	for _, rel := range r.relationships {
		fmt.Fprintf(&sb, "- %s <-> %s\n", rel.From, rel.To)
	}
	return sb.String()
}
