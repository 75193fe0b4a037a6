package domain

import (
	"errors"
	"fmt"
)

// ErrRouteNotFound is returned when a route id is not in the catalogue.
var ErrRouteNotFound = errors.New("route not found")

// ValidationError reports a malformed route catalogue at load time.
// It is fatal to startup; the input must be corrected before retry.
type ValidationError struct {
	RouteID string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.RouteID == "" {
		return fmt.Sprintf("catalogue validation: %s", e.Reason)
	}
	return fmt.Sprintf("catalogue validation: route %q: %s", e.RouteID, e.Reason)
}

// NewValidationError builds a ValidationError for a specific route.
func NewValidationError(routeID, format string, args ...any) *ValidationError {
	return &ValidationError{RouteID: routeID, Reason: fmt.Sprintf(format, args...)}
}
