// Package ability defines the contract between the stage executor and the
// backend groups that host abilities.
package ability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/supportflow/domain/workflow"
)

// Context is the read-only projection of state passed to a handler.
type Context map[string]any

// Str returns the string at key, or "".
func (c Context) Str(key string) string {
	s, _ := c[key].(string)
	return s
}

// Int returns the integer at key, accepting JSON-decoded floats.
func (c Context) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Bool returns the bool at key.
func (c Context) Bool(key string) bool {
	b, _ := c[key].(bool)
	return b
}

// Records returns the list of records at key, accepting []any of maps.
func (c Context) Records(key string) []map[string]any {
	return AsRecords(c[key])
}

// Strings returns the string list at key, accepting []any of strings.
func (c Context) Strings(key string) []string {
	return AsStrings(c[key])
}

// Result is the mapping returned by a handler.
type Result map[string]any

// Keys recognized on every result.
const (
	KeyAbility   = "ability"
	KeyBackend   = "backend"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTimestamp = "timestamp"
)

// Timestamp formats t the way every result records its timestamp.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Result statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrorResult builds the inline error record for a failed ability call.
func ErrorResult(a workflow.Ability, err error) Result {
	return Result{
		KeyAbility:   a.Name,
		KeyBackend:   string(a.Backend),
		KeyStatus:    StatusFailed,
		KeyError:     err.Error(),
		KeyTimestamp: Timestamp(time.Now()),
	}
}

// IsError reports whether r is an inline error record.
func (r Result) IsError() bool {
	_, ok := r[KeyError]
	return ok
}

// Ability returns the ability name recorded on r.
func (r Result) Ability() string {
	s, _ := r[KeyAbility].(string)
	return s
}

// Handler executes one ability. Handlers must treat in as read-only.
type Handler func(ctx context.Context, in Context) (Result, error)

// Client executes abilities for one backend group.
type Client interface {
	// Backend returns the group this client serves.
	Backend() workflow.Backend

	// Connect acquires the backend connection for a batch of calls.
	Connect(ctx context.Context) error

	// Disconnect releases a connection acquired by Connect.
	Disconnect(ctx context.Context) error

	// Execute runs a single ability with the given context.
	Execute(ctx context.Context, a workflow.Ability, in Context) (Result, error)
}

// Errors returned by clients.
var (
	// ErrNotConnected indicates Execute without a live connection.
	ErrNotConnected = errors.New("ability client not connected")

	// ErrBackendMismatch indicates an ability routed to the wrong backend group.
	ErrBackendMismatch = errors.New("ability routed to wrong backend")

	// ErrHandlerFailure wraps any failure raised inside a handler.
	ErrHandlerFailure = errors.New("ability handler failed")
)

// MismatchError builds a backend mismatch error for a.
func MismatchError(a workflow.Ability, client workflow.Backend) error {
	return fmt.Errorf("%w: %s is bound to %s, not %s", ErrBackendMismatch, a.Name, a.Backend, client)
}
