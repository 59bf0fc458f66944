package blackboard

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned by every operation attempted after the
// session has been torn down. Callers should treat it as fail-fast and
// not retry.
var ErrSessionClosed = errors.New("blackboard: session closed")

// ValidationError reports a malformed operation that was rejected
// synchronously. Nothing is published when a ValidationError is returned.
type ValidationError struct {
	Op     string // operation that was rejected, e.g. "publish"
	Reason string // human-readable cause
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("blackboard: invalid %s: %s", e.Op, e.Reason)
}

// IsValidation returns true if the error is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// validationErrorf builds a ValidationError for the given operation.
func validationErrorf(op, format string, a ...any) *ValidationError {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(format, a...)}
}
