// Package checkpoint defines the durable progress record written after every
// stage so an interrupted request can resume from the next stage.
package checkpoint

import (
	"context"
	"time"

	"github.com/felixgeelhaar/supportflow/domain/state"
)

// Status of the request at checkpoint time.
type Status string

// Checkpoint statuses.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// IsTerminal reports whether a request in this status cannot be resumed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// Checkpoint records a request's progress after a stage.
type Checkpoint struct {
	// ID is unique per save.
	ID string `json:"id"`

	// ThreadID identifies the request; the ticket id is used.
	ThreadID string `json:"thread_id"`

	// LastStage is the stage that just finished.
	LastStage string `json:"last_stage"`

	// NextStage is where a resume continues; empty once COMPLETE ran.
	NextStage string `json:"next_stage"`

	// Branch is the DECIDE annotation ("escalate" or "continue"), once known.
	Branch string `json:"branch,omitempty"`

	Status Status `json:"status"`

	// Error is set when the request stopped on a failure.
	Error string `json:"error,omitempty"`

	State state.AgentState `json:"state"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists the latest checkpoint per thread.
type Store interface {
	// Save replaces the checkpoint for cp.ThreadID.
	Save(ctx context.Context, cp Checkpoint) error

	// Load returns the latest checkpoint for threadID.
	Load(ctx context.Context, threadID string) (Checkpoint, error)

	// Delete removes the checkpoint for threadID.
	Delete(ctx context.Context, threadID string) error

	// List returns the thread ids that have a checkpoint.
	List(ctx context.Context) ([]string, error)
}
