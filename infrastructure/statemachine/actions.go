package statemachine

import (
	"time"

	"github.com/felixgeelhaar/statekit"
)

// Step is one recorded transition.
type Step struct {
	From   string
	To     string
	Reason string
	At     time.Time
}

// TransitionPayload carries the target state and reason with an event.
type TransitionPayload struct {
	ToState string
	Reason  string
}

// recordTransition appends the step to the context history.
// In statekit, actions receive a pointer to the context. Since our context is *Context,
// actions receive **Context.
func recordTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}

	c := *ctx
	payload, _ := event.Payload.(TransitionPayload)
	c.History = append(c.History, Step{
		From:   c.Current,
		To:     payload.ToState,
		Reason: payload.Reason,
		At:     time.Now().UTC(),
	})
	c.Current = payload.ToState
}
