package metricship

import "github.com/bft-labs/metricship/internal/app"

// StateChangeEvent describes a lifecycle transition of periodic publishing.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// EventHandler receives notifications about publish cycles.
type EventHandler interface {
	// OnPublish is called after every cycle with its result.
	OnPublish(res Result)

	// OnSourceError is called when the periodic source fails.
	OnSourceError(err error)

	// OnStateChange is called after Start, Stop or a crash moves the
	// periodic publisher to a new state.
	OnStateChange(event StateChangeEvent)
}

// BaseEventHandler implements EventHandler with no-ops.
type BaseEventHandler struct{}

func (BaseEventHandler) OnPublish(Result)               {}
func (BaseEventHandler) OnSourceError(error)            {}
func (BaseEventHandler) OnStateChange(StateChangeEvent) {}

// runnerEvents adapts an EventHandler to the runner's emitter and state
// listener interfaces.
type runnerEvents struct {
	handler EventHandler
}

func (e runnerEvents) OnPublish(res Result)    { e.handler.OnPublish(res) }
func (e runnerEvents) OnSourceError(err error) { e.handler.OnSourceError(err) }

func (e runnerEvents) OnStateChange(previous, current app.State, reason string) {
	e.handler.OnStateChange(StateChangeEvent{Previous: previous, Current: current, Reason: reason})
}
