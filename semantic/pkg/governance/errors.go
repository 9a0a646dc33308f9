package governance

import "errors"

// Reason classifies why an intent was rejected.
type Reason string

const (
	ReasonMetricNotAllowed    Reason = "metric_not_allowed"
	ReasonDimensionNotAllowed Reason = "dimension_not_allowed"
	ReasonNoRelationship      Reason = "no_relationship"
	ReasonFilterNotAllowed    Reason = "filter_not_allowed"
	ReasonInvalidFilterValue  Reason = "invalid_filter_value"
)

// GovernanceError reports an intent that asks for something the semantic
// model does not permit. It is a rejected query, not a system fault.
type GovernanceError struct {
	Reason  Reason
	Message string
}

func (e *GovernanceError) Error() string { return e.Message }

// IsGovernanceError reports whether err is, or wraps, a GovernanceError.
func IsGovernanceError(err error) bool {
	var ge *GovernanceError
	return errors.As(err, &ge)
}
