package eligibility

import (
	"strings"

	govmodels "lted/internal/governance/models"
	dErrors "lted/pkg/domain-errors"
)

// IneligibleError carries the hard stops that blocked a transition.
type IneligibleError struct {
	HardStops []govmodels.Reason
}

func (e *IneligibleError) Error() string {
	return "voter is not eligible: " + strings.Join(e.Reasons(), ", ")
}

// Unwrap exposes the coded form so dErrors.HasCode(err, CodeIneligible) holds.
func (e *IneligibleError) Unwrap() error {
	return dErrors.New(dErrors.CodeIneligible, "voter is not eligible")
}

// Reasons returns the hard stops as strings.
func (e *IneligibleError) Reasons() []string {
	out := make([]string, len(e.HardStops))
	for i, r := range e.HardStops {
		out[i] = string(r)
	}
	return out
}
