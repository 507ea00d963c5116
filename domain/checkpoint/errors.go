package checkpoint

import "errors"

// Domain errors for checkpoint persistence.
var (
	// ErrNotFound indicates no checkpoint exists for the thread.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrInvalidThreadID indicates an empty thread id.
	ErrInvalidThreadID = errors.New("invalid thread id")

	// ErrAlreadyCompleted indicates a resume of a finished request.
	ErrAlreadyCompleted = errors.New("request already completed")
)
