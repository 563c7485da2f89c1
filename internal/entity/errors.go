package entity

import "errors"

// Domain errors for the entity package.
var (
	// ErrNotSupported is returned when an entity cannot perform an action.
	ErrNotSupported = errors.New("entity: action not supported")

	// ErrInvalidValue is returned when an action argument is outside the
	// entity's legal values.
	ErrInvalidValue = errors.New("entity: invalid value")

	// ErrInvalidAction is returned when an action payload cannot be decoded.
	ErrInvalidAction = errors.New("entity: invalid action")
)
