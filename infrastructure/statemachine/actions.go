package statemachine

import (
	"github.com/felixgeelhaar/statekit"
)

// transitionPayload is attached to every event sent by Flow.
type transitionPayload struct {
	To     statekit.StateID
	Reason string
}

// enterState tracks the current state. Actions receive **Context because the
// machine context is itself a pointer.
func enterState(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	if p, ok := event.Payload.(transitionPayload); ok && p.To != "" {
		(*ctx).Current = p.To
	}
}

func recordTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	c := *ctx

	p, _ := event.Payload.(transitionPayload)
	c.Transitions = append(c.Transitions, Transition{
		From:   c.Current,
		To:     p.To,
		Event:  event.Type,
		Reason: p.Reason,
	})
}

// Guards receive the context by value, which here is *Context.
func guardEscalationRequired(ctx *Context, _ statekit.Event) bool {
	return ctx != nil && ctx.Escalate
}

func guardNoEscalation(ctx *Context, _ statekit.Event) bool {
	return ctx != nil && !ctx.Escalate
}
