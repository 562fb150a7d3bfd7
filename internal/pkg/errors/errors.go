package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources. Records owned by
	// another user are reported the same way.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState is returned when an operation does not apply to the
	// resource's current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
)
