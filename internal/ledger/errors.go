package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record id does not exist in a store.
	ErrNotFound = errors.New("record not found")
	// ErrConflict marks a record edited locally since the last inbound sync.
	ErrConflict = errors.New("conflicting local edit")
)

// ValidationError reports malformed input. It is fatal for the operation and
// no partial write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ExternalServiceError wraps a failure of a store, mail or file service for a
// single unit of work.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// External wraps err as an ExternalServiceError. A nil err stays nil.
func External(service string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalServiceError{Service: service, Err: err}
}
