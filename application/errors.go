package application

import "errors"

// ErrWorkflowFailure marks an error that escaped stage execution. It is
// captured on Result rather than returned.
var ErrWorkflowFailure = errors.New("workflow failure")

// ErrMissingClient indicates a stage table ability with no client for its backend.
var ErrMissingClient = errors.New("no client for backend")
