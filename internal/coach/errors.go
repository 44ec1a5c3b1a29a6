package coach

import (
	"errors"
	"fmt"
)

var (
	ErrAdviceNotFound  = errors.New("advice not found")
	ErrCheckinNotFound = errors.New("check-in not found")
	ErrForbidden       = errors.New("record belongs to another user")
)

// ValidationError reports malformed input rejected before it reaches the engine.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
