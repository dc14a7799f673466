package doctors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no doctor exists for the id.
	ErrNotFound = errors.New("doctor not found")

	// ErrEmailTaken is returned when another doctor already uses the email.
	ErrEmailTaken = errors.New("email must be unique")

	// ErrStoreUnavailable is returned for transient store failures; callers
	// may retry with backoff.
	ErrStoreUnavailable = errors.New("doctor store unavailable")
)

// ValidationError rejects malformed input at configuration time.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Invalidf builds a ValidationError.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
