// Package apperror defines the error kinds the estimation engine reports to its callers.
// Concrete failures wrap one of the kinds, so callers branch with errors.Is.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input the user can correct. Nothing was written.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden marks an actor acting outside their approval level.
	ErrForbidden = errors.New("not permitted")
	// ErrConflict marks a state that changed or does not allow the operation. Callers should re-fetch.
	ErrConflict = errors.New("state conflict")
	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")
)

func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Forbidden(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
