package appointments

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the appointment does not exist.
	ErrNotFound = errors.New("appointment not found")
	// ErrSlotTaken means a non-cancelled appointment already occupies the
	// (doctor, date, time) tuple.
	ErrSlotTaken = errors.New("slot is no longer available")
	// ErrForbidden means the actor may not perform this operation on this
	// appointment.
	ErrForbidden = errors.New("forbidden")
	// ErrStoreUnavailable means the database could not be reached in time.
	// Retryable.
	ErrStoreUnavailable = errors.New("appointment store unavailable")
)

// ValidationError marks caller mistakes that map to HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Invalidf builds a ValidationError.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
