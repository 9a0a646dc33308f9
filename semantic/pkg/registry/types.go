package registry

import "fmt"

// Document is the on-disk form of a semantic model. JSON documents are
// accepted as well since JSON is a subset of YAML.
type Document struct {
	Models        []ModelSpec        `yaml:"models" json:"models"`
	Metrics       []MetricSpec       `yaml:"metrics" json:"metrics"`
	Dimensions    []DimensionSpec    `yaml:"dimensions" json:"dimensions"`
	Relationships []RelationshipSpec `yaml:"relationships" json:"relationships"`
}

type ModelSpec struct {
	Name        string       `yaml:"name" json:"name"`
	Table       string       `yaml:"table" json:"table"`
	PrimaryKey  string       `yaml:"primary_key" json:"primary_key"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Columns     []ColumnSpec `yaml:"columns" json:"columns"`
}

type ColumnSpec struct {
	Name string `yaml:"name" json:"name"`
	// Column is the physical column name; defaults to Name.
	Column      string `yaml:"column,omitempty" json:"column,omitempty"`
	Type        string `yaml:"type,omitempty" json:"type,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type MetricSpec struct {
	Name  string `yaml:"name" json:"name"`
	Model string `yaml:"model" json:"model"`
	// Expression is an aggregate template; {column} placeholders name
	// logical columns of Model.
	Expression  string `yaml:"expression" json:"expression"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type DimensionSpec struct {
	Name        string `yaml:"name" json:"name"`
	Model       string `yaml:"model" json:"model"`
	Column      string `yaml:"column" json:"column"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type RelationshipSpec struct {
	From       string `yaml:"from" json:"from"`
	FromColumn string `yaml:"from_column" json:"from_column"`
	To         string `yaml:"to" json:"to"`
	ToColumn   string `yaml:"to_column" json:"to_column"`
}

// Column is a declared column of a model.
type Column struct {
	Name        string `json:"name"`
	Physical    string `json:"column"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Model is a declared table.
type Model struct {
	Name        string   `json:"name"`
	Table       string   `json:"table"`
	PrimaryKey  string   `json:"primary_key"`
	Description string   `json:"description,omitempty"`
	Columns     []Column `json:"columns"`

	columns map[string]Column
}

// Column looks up a logical column of the model.
func (m *Model) Column(name string) (Column, bool) {
	c, ok := m.columns[name]
	return c, ok
}

// Ref returns the qualified physical reference of a column, e.g. sales.total_amount.
func (m *Model) Ref(c Column) string {
	return m.Table + "." + c.Physical
}

// Metric is a named aggregate bound to a base model. Expression is the
// rendered SQL with every column qualified by its table.
type Metric struct {
	Name        string `json:"name"`
	Model       string `json:"model"`
	Expression  string `json:"expression"`
	Description string `json:"description,omitempty"`
}

// Dimension is a named groupable column bound to a model. Ref is the
// qualified physical column, e.g. customers.name.
type Dimension struct {
	Name        string `json:"name"`
	Model       string `json:"model"`
	Column      string `json:"column"`
	Ref         string `json:"-"`
	Description string `json:"description,omitempty"`
}

// Relationship is an approved, bidirectional join between two models.
type Relationship struct {
	From       string `json:"from"`
	FromColumn string `json:"from_column"`
	To         string `json:"to"`
	ToColumn   string `json:"to_column"`
	// Condition is the rendered join condition, e.g. sales.customer_id = customers.id.
	Condition string `json:"condition"`
}

// Connects reports whether the relationship joins a and b in either direction.
func (r *Relationship) Connects(a, b string) bool {
	return (r.From == a && r.To == b) || (r.From == b && r.To == a)
}

// SchemaLoadError is returned when a semantic model cannot be loaded.
// A process that gets one cannot serve traffic.
type SchemaLoadError struct {
	Source string
	Err    error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("failed to load semantic model %s: %v", e.Source, e.Err)
}

func (e *SchemaLoadError) Unwrap() error { return e.Err }

// NotFoundError is returned by registry lookups for undeclared names.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q is not declared in the semantic model", e.Kind, e.Name)
}
