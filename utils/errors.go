package utils

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by services, controllers and the client library.
// Services wrap these with fmt.Errorf("...: %w", err); callers branch with
// errors.Is.
var (
	// ErrAuthentication: missing or invalid credential. Fails closed,
	// no side effects.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotFound: pair, message or user absent.
	ErrNotFound = errors.New("not found")

	// ErrValidation: malformed action, self-targeted action, invalid enum.
	ErrValidation = errors.New("validation failed")

	// ErrConflict: lost update on a pair record. Retried internally,
	// never surfaced to callers.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrTransport: realtime channel unavailable. Triggers the stateless
	// fallback; user-visible only if the fallback also fails.
	ErrTransport = errors.New("transport unavailable")

	// ErrPersistence: store unavailable. Surfaces as a send failure and
	// rolls back the provisional message.
	ErrPersistence = errors.New("persistence unavailable")
)

// Validationf builds an ErrValidation with field detail.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
