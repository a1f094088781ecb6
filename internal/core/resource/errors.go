package resource

import (
	"errors"
	"fmt"

	"github.com/baseplate/tracker/internal/core/workspace"
)

var (
	// ErrNotFound is returned for missing items and for items outside the
	// caller's visibility alike.
	ErrNotFound = workspace.ErrNotFound

	// ErrForbidden is returned only when a create predicate refuses. Update
	// and delete refusals are reported as ErrNotFound.
	ErrForbidden = errors.New("forbidden")

	// ErrPersistence wraps storage failures. Its detail is logged, never
	// returned to callers.
	ErrPersistence = errors.New("internal server error")

	ErrUnknownResource  = errors.New("unknown resource")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrInvalidRequest   = errors.New("invalid request")
)

// BusinessRuleError reports a resource-specific precondition failure, such
// as a delete blocked by dependent records.
type BusinessRuleError struct {
	Reason string
	// Count is the number of blocking records, when that applies.
	Count int
}

func (e *BusinessRuleError) Error() string {
	return e.Reason
}

// Blocked builds a BusinessRuleError carrying count.
func Blocked(count int, format string, args ...any) *BusinessRuleError {
	return &BusinessRuleError{Reason: fmt.Sprintf(format, args...), Count: count}
}

// Rejected builds a BusinessRuleError without a count.
func Rejected(format string, args ...any) *BusinessRuleError {
	return &BusinessRuleError{Reason: fmt.Sprintf(format, args...)}
}

func IsBusinessRule(err error) bool {
	var be *BusinessRuleError
	return errors.As(err, &be)
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
