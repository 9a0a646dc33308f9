package governance

import (
	"sort"

	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/registry"
)

// Intent is the structured request extracted from a question. It is
// untrusted until it has been through Validate.
type Intent struct {
	Metric     string         `json:"metric"`
	Dimensions []string       `json:"dimensions"`
	Filters    map[string]any `json:"filters,omitempty"`
}

// Filter is an equality predicate on a registered dimension.
type Filter struct {
	Dimension *registry.Dimension
	Value     any
}

// ValidatedIntent is an Intent whose metric, dimensions, filters and joins
// have all been checked against a Registry. It can only be produced by
// Validate.
type ValidatedIntent struct {
	intent     Intent
	registry   *registry.Registry
	base       *registry.Model
	metric     *registry.Metric
	dimensions []*registry.Dimension
	filters    []Filter
}

func (v *ValidatedIntent) Registry() *registry.Registry { return v.registry }

// BaseModel is the metric's model; every query is issued FROM its table.
func (v *ValidatedIntent) BaseModel() *registry.Model { return v.base }

func (v *ValidatedIntent) Metric() *registry.Metric { return v.metric }

// Dimensions are returned in request order.
func (v *ValidatedIntent) Dimensions() []*registry.Dimension {
	out := make([]*registry.Dimension, len(v.dimensions))
	copy(out, v.dimensions)
	return out
}

// Filters are returned sorted by dimension name.
func (v *ValidatedIntent) Filters() []Filter {
	out := make([]Filter, len(v.filters))
	copy(out, v.filters)
	return out
}

// Intent returns a copy of the request the validation was performed on.
func (v *ValidatedIntent) Intent() Intent {
	out := Intent{Metric: v.intent.Metric}
	out.Dimensions = append([]string(nil), v.intent.Dimensions...)
	if len(v.intent.Filters) > 0 {
		out.Filters = make(map[string]any, len(v.intent.Filters))
		for k, val := range v.intent.Filters {
			out.Filters[k] = val
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
