package pesapal

import (
	"errors"
	"fmt"
)

// Failure classes for gateway operations. Callers match them with errors.Is;
// the upstream cause is wrapped alongside.
var (
	ErrAuth         = errors.New("pesapal authentication failed")
	ErrRegistration = errors.New("pesapal IPN registration failed")
	ErrValidation   = errors.New("invalid order request")
	ErrSubmission   = errors.New("pesapal order submission failed")
	ErrStatusQuery  = errors.New("pesapal transaction status check failed")
	ErrMethodsQuery = errors.New("pesapal payment methods query failed")
)

// ValidationError reports the first order field that is missing or unusable.
// Reason is empty for a missing field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// Is makes errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
