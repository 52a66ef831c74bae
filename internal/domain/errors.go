package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrTransient = errors.New("transient datastore error")
)

// ConflictError carries the user-visible reason a request was rejected
// ("no capacity available", "resource cancelled", ...). The CRUD layer
// renders these reasons directly, so they must stay specific.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// ErrConflict matches any ConflictError via errors.Is.
var ErrConflict = errors.New("conflict")

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func Conflict(reason string) error {
	return &ConflictError{Reason: reason}
}

func Conflictf(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictReason extracts the reason from a conflict error, or "" if the
// error is not a conflict.
func ConflictReason(err error) string {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return ""
}
