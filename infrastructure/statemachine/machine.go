// Package statemachine drives the stage graph of a single request with statekit.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/supportflow/domain/workflow"
)

// MachineID names the workflow statechart.
const MachineID = "supportflow"

// Terminal states outside the stage table.
const (
	StateDone   statekit.StateID = "DONE"
	StateFailed statekit.StateID = "FAILED"
)

// Events driving the graph.
const (
	EventNext     statekit.EventType = "NEXT"
	EventEscalate statekit.EventType = "ESCALATE"
	EventContinue statekit.EventType = "CONTINUE"
	EventFail     statekit.EventType = "FAIL"
)

// Branch labels recorded for the DECIDE transition.
const (
	BranchEscalate = "escalate"
	BranchContinue = "continue"
)

// Transition is one recorded edge of the graph.
type Transition struct {
	From   statekit.StateID
	To     statekit.StateID
	Event  statekit.EventType
	Reason string
}

// Context carries per-request routing data through the machine.
type Context struct {
	ThreadID string

	// Escalate mirrors the store's escalation flag once DECIDE has run.
	Escalate bool

	Current     statekit.StateID
	Transitions []Transition
}

func sid(name workflow.StageName) statekit.StateID {
	return statekit.StateID(name)
}

// NewWorkflowMachine builds the statechart for the fixed stage order. DECIDE
// reaches UPDATE through ESCALATE or CONTINUE, whichever matches the flag.
func NewWorkflowMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context](MachineID).
		WithInitial(sid(workflow.StageIntake)).
		WithContext(&Context{}).
		WithAction("enter", enterState).
		WithAction("record", recordTransition).
		WithGuard("escalationRequired", guardEscalationRequired).
		WithGuard("noEscalation", guardNoEscalation).
		State(sid(workflow.StageIntake)).
			OnEntry("enter").
			On(EventNext).Target(sid(workflow.StageUnderstand)).Do("record").
			On(EventFail).Target(StateFailed).Do("record").
			Done().
		State(sid(workflow.StageUnderstand)).
			OnEntry("enter").
			On(EventNext).Target(sid(workflow.StagePrepare)).Do("record").
			On(EventFail).Target(StateFailed).Do("record").
			Done().
		State(sid(workflow.StagePrepare)).
			OnEntry("enter").
			On(EventNext).Target(sid(workflow.StageAsk)).Do("record").
			On(EventFail).Target(StateFailed).Do("record").
			Done().
		State(sid(workflow.StageAsk)).
			OnEntry("enter").
			On(EventNext).Target(sid(workflow.StageWait)).Do("record").
			On(EventFail).Target(StateFailed).Do("record").
			Done().
		State(sid(workflow.StageWait)).
			OnEntry("enter").
			On(EventNext).Target(sid(workflow.StageRetrieve)).Do("record").
			On(EventFail).Target(StateFailed).Do("record").
			Done().
		State(sid(workflow.StageRetrieve)).
			OnEntry("enter").
			On(EventNext).Target(sid(workflow.StageDecide)).Do("record").
			On(EventFail).Target(StateFailed).Do("record").
			Done().
		State(sid(workflow.StageDecide)).
			OnEntry("enter").
			On(EventEscalate).Target(sid(workflow.StageUpdate)).Guard("escalationRequired").Do("record").
			On(EventContinue).Target(sid(workflow.StageUpdate)).Guard("noEscalation").Do("record").
			On(EventFail).Target(StateFailed).Do("record").
			Done().
		State(sid(workflow.StageUpdate)).
			OnEntry("enter").
			On(EventNext).Target(sid(workflow.StageCreate)).Do("record").
			On(EventFail).Target(StateFailed).Do("record").
			Done().
		State(sid(workflow.StageCreate)).
			OnEntry("enter").
			On(EventNext).Target(sid(workflow.StageDo)).Do("record").
			On(EventFail).Target(StateFailed).Do("record").
			Done().
		State(sid(workflow.StageDo)).
			OnEntry("enter").
			On(EventNext).Target(sid(workflow.StageComplete)).Do("record").
			On(EventFail).Target(StateFailed).Do("record").
			Done().
		State(sid(workflow.StageComplete)).
			OnEntry("enter").
			On(EventNext).Target(StateDone).Do("record").
			On(EventFail).Target(StateFailed).Do("record").
			Done().
		State(StateDone).
			Final().
			OnEntry("enter").
			Done().
		State(StateFailed).
			Final().
			OnEntry("enter").
			Done().
		Build()
}
