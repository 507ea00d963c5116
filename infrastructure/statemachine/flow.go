package statemachine

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/supportflow/domain/workflow"
)

// ErrTransitionRejected is returned when the machine ignores an event.
var ErrTransitionRejected = errors.New("statemachine: transition rejected")

// Flow wraps a statekit interpreter for one request.
type Flow struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewFlow creates a flow for threadID positioned at the first stage.
func NewFlow(threadID string) (*Flow, error) {
	machine, err := NewWorkflowMachine()
	if err != nil {
		return nil, fmt.Errorf("build workflow machine: %w", err)
	}

	ctx := &Context{ThreadID: threadID, Current: sid(workflow.StageIntake)}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Flow{interp: interp, ctx: ctx}, nil
}

// Start enters the initial stage.
func (f *Flow) Start() {
	f.interp.Start()
	f.ctx.Current = f.interp.State().Value
}

// Stop halts the interpreter.
func (f *Flow) Stop() {
	f.interp.Stop()
}

// Current returns the active state id.
func (f *Flow) Current() statekit.StateID {
	return f.interp.State().Value
}

// Stage returns the active stage; false when the flow is in a terminal state.
func (f *Flow) Stage() (workflow.StageName, bool) {
	cur := f.Current()
	if cur == StateDone || cur == StateFailed {
		return "", false
	}
	return workflow.StageName(cur), true
}

// Done reports whether a terminal state was reached.
func (f *Flow) Done() bool {
	return f.interp.Done()
}

// Failed reports whether the flow ended in FAILED.
func (f *Flow) Failed() bool {
	return f.interp.Matches(StateFailed)
}

// Transitions returns a copy of the recorded edges.
func (f *Flow) Transitions() []Transition {
	out := make([]Transition, len(f.ctx.Transitions))
	copy(out, f.ctx.Transitions)
	return out
}

// SetEscalation updates the flag consulted by the DECIDE guards.
func (f *Flow) SetEscalation(escalate bool) {
	f.interp.UpdateContext(func(c **Context) {
		(*c).Escalate = escalate
	})
}

// Next moves to the following stage, or to DONE after the last one.
func (f *Flow) Next(to statekit.StateID) error {
	return f.send(EventNext, to, "")
}

// Advance moves to stage.
func (f *Flow) Advance(stage workflow.StageName) error {
	return f.Next(sid(stage))
}

// Finish leaves the last stage for DONE.
func (f *Flow) Finish() error {
	return f.Next(StateDone)
}

// Branch leaves DECIDE by the label matching the escalation flag and
// returns that label.
func (f *Flow) Branch() (string, error) {
	event, label := EventContinue, BranchContinue
	if f.ctx.Escalate {
		event, label = EventEscalate, BranchEscalate
	}
	if err := f.send(event, sid(workflow.StageUpdate), label); err != nil {
		return "", err
	}
	return label, nil
}

// Fail moves to FAILED.
func (f *Flow) Fail(reason string) error {
	return f.send(EventFail, StateFailed, reason)
}

func (f *Flow) send(event statekit.EventType, to statekit.StateID, reason string) error {
	from := f.Current()
	f.interp.Send(statekit.Event{
		Type:    event,
		Payload: transitionPayload{To: to, Reason: reason},
	})
	if f.Current() != to {
		return fmt.Errorf("%w: %s from %s", ErrTransitionRejected, event, from)
	}
	f.ctx.Current = to
	return nil
}

// ResumeAt restores the interpreter at stage, as after a checkpoint.
func (f *Flow) ResumeAt(stage workflow.StageName, escalate bool) error {
	f.ctx.Escalate = escalate
	f.ctx.Current = sid(stage)
	snapshot := statekit.Snapshot[*Context]{
		MachineID:    MachineID,
		CurrentState: sid(stage),
		Context:      f.ctx,
		CreatedAt:    time.Now(),
	}
	if err := f.interp.Restore(snapshot); err != nil {
		return fmt.Errorf("restore flow at %s: %w", stage, err)
	}
	return nil
}
