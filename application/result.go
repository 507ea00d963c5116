package application

import (
	"time"

	"github.com/felixgeelhaar/supportflow/domain/checkpoint"
	"github.com/felixgeelhaar/supportflow/domain/state"
	"github.com/felixgeelhaar/supportflow/infrastructure/statemachine"
)

// Result is the graph-level outcome of one request.
type Result struct {
	ThreadID    string                    `json:"thread_id"`
	Status      checkpoint.Status         `json:"status"`
	Branch      string                    `json:"branch,omitempty"`
	Stages      []StageResult             `json:"stages"`
	Transitions []statemachine.Transition `json:"transitions,omitempty"`
	Payload     *state.Payload            `json:"payload,omitempty"`
	Summary     *state.Summary            `json:"summary,omitempty"`
	Failure     *FailurePayload           `json:"failure,omitempty"`

	// Error is the workflow error message, empty on success.
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

// Succeeded reports whether every stage ran.
func (r Result) Succeeded() bool {
	return r.Status == checkpoint.StatusCompleted
}

// FailurePayload is returned instead of a payload when a request could not
// start at all.
type FailurePayload struct {
	Error     string      `json:"error"`
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	InputData state.Input `json:"input_data"`
}
