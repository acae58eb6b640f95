package statemachine

import (
	"github.com/felixgeelhaar/statekit"
)

// guardCanTransition checks the domain transition table.
// Guards receive the context by value; with *Context that is the pointer itself.
func guardCanTransition(ctx *Context, event statekit.Event) bool {
	if ctx == nil || ctx.Allowed == nil {
		return false
	}

	payload, ok := event.Payload.(TransitionPayload)
	if !ok || payload.ToState == "" {
		return false
	}
	return ctx.Allowed(ctx.Current, payload.ToState)
}
