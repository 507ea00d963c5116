package state

import "errors"

// Domain errors for request state.
var (
	// ErrAlreadyInitialized indicates Initialize was called on a store that already holds input.
	ErrAlreadyInitialized = errors.New("state already initialized")

	// ErrNotInitialized indicates a mutation before Initialize.
	ErrNotInitialized = errors.New("state not initialized")

	// ErrInvalidInput indicates a request input missing required fields.
	ErrInvalidInput = errors.New("invalid request input")
)
