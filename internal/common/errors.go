// Package common defines shared constants and sentinel errors used across
// the gallery selection server. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Store-level errors.
	ErrorNotFound       = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidDocument  = errors.New("invalid document")

	// Access errors.
	ErrNotAuthorized    = errors.New("not authorized")
	ErrDeadlineExpired  = errors.New("selection deadline expired")
	ErrCapacityExceeded = errors.New("selection capacity exceeded")

	// Package lifecycle errors.
	ErrEmptySelection     = errors.New("empty selection")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrPackageNotApproved = errors.New("package not approved")

	// Validation / state errors.
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")

	// Session token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// CapacityError reports how far a selection request overshoots the grant cap.
// It matches ErrCapacityExceeded with errors.Is.
type CapacityError struct {
	Limit     int
	Requested int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %d selected, limit is %d (%d over)", ErrCapacityExceeded, e.Requested, e.Limit, e.Excess())
}

// Excess is the number of items that must be removed to fit the cap.
func (e *CapacityError) Excess() int {
	if e.Requested <= e.Limit {
		return 0
	}
	return e.Requested - e.Limit
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}
