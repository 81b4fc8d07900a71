// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing room, user, team or other entity.
	ErrNotFound = errors.New("not found")

	// ErrNotMember signals an action on a room the actor has not joined.
	ErrNotMember = errors.New("not a member of this chat")

	// ErrForbidden signals an authorization failure, e.g. messaging a
	// blocked user or editing someone else's team.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicate signals a unique-constraint violation. Callers on
	// get-or-create paths treat it as "already exists, fetch and return".
	ErrDuplicate = errors.New("already exists")

	// ErrValidation signals a malformed or rejected payload.
	ErrValidation = errors.New("validation failed")
)

// Validationf wraps ErrValidation with a caller-facing message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// Forbiddenf wraps ErrForbidden with a caller-facing message.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrForbidden}, args...)...)
}
