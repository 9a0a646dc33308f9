package governance

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/Avexra-AI/SAS-Chatbot/semantic/pkg/registry"
)

// Validate checks an intent against the registry. The metric and every
// dimension must be declared, and each dimension or filter on a model other
// than the metric's base model needs a direct relationship to it. Filter
// values are not inspected beyond requiring a scalar.
func Validate(intent Intent, reg *registry.Registry) (*ValidatedIntent, error) {
	metric, err := reg.GetMetric(intent.Metric)
	if err != nil {
		return nil, &GovernanceError{
			Reason:  ReasonMetricNotAllowed,
			Message: fmt.Sprintf("metric '%s' not allowed", intent.Metric),
		}
	}
	base, err := reg.GetModel(metric.Model)
	if err != nil {
		// Unreachable for a registry that loaded.
		return nil, fmt.Errorf("metric %s: %w", metric.Name, err)
	}

	v := &ValidatedIntent{
		intent:   intent,
		registry: reg,
		base:     base,
		metric:   metric,
	}

	seen := make(map[string]bool, len(intent.Dimensions))
	for _, name := range intent.Dimensions {
		dim, err := reg.GetDimension(name)
		if err != nil {
			return nil, &GovernanceError{
				Reason:  ReasonDimensionNotAllowed,
				Message: fmt.Sprintf("dimension '%s' not allowed", name),
			}
		}
		if seen[name] {
			return nil, &GovernanceError{
				Reason:  ReasonDimensionNotAllowed,
				Message: fmt.Sprintf("dimension '%s' requested more than once", name),
			}
		}
		seen[name] = true
		v.dimensions = append(v.dimensions, dim)
	}

	for _, dim := range v.dimensions {
		if err := checkReachable(reg, base, dim.Model); err != nil {
			return nil, err
		}
	}

	for _, key := range sortedKeys(intent.Filters) {
		dim, err := reg.GetDimension(key)
		if err != nil {
			return nil, &GovernanceError{
				Reason:  ReasonFilterNotAllowed,
				Message: fmt.Sprintf("filter '%s' not allowed", key),
			}
		}
		if err := checkReachable(reg, base, dim.Model); err != nil {
			return nil, err
		}
		value, ok := scalar(intent.Filters[key])
		if !ok {
			return nil, &GovernanceError{
				Reason:  ReasonInvalidFilterValue,
				Message: fmt.Sprintf("filter '%s' must be a string, number or boolean", key),
			}
		}
		v.filters = append(v.filters, Filter{Dimension: dim, Value: value})
	}

	return v, nil
}

func checkReachable(reg *registry.Registry, base *registry.Model, model string) error {
	if model == base.Name {
		return nil
	}
	if _, ok := reg.FindRelationship(base.Name, model); !ok {
		return &GovernanceError{
			Reason:  ReasonNoRelationship,
			Message: fmt.Sprintf("no approved relationship between %s and %s", base.Name, model),
		}
	}
	return nil
}

func scalar(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string, bool:
		return t, true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		f, err := t.Float64()
		return f, err == nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return v, true
	}
	return nil, false
}
