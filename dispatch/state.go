package dispatch

import "github.com/wippyai/systrap/opcode"

// State is a stage of one trap.
type State uint8

const (
	StateIdle State = iota
	StateValidating
	StateMarshaling
	StateInvoking
	StateEncoding
	StateError
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateValidating: "validating",
	StateMarshaling: "marshaling",
	StateInvoking:   "invoking",
	StateEncoding:   "encoding",
	StateError:      "error",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Transition is one state change of a trap.
type Transition struct {
	Opcode opcode.Opcode
	From   State
	To     State
}

// Observer receives the state transitions of every trap. It runs on the
// trapping goroutine and must not dispatch.
type Observer interface {
	OnTransition(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

func (f ObserverFunc) OnTransition(t Transition) { f(t) }

// tracker walks one trap through the state machine.
type tracker struct {
	d     *Dispatcher
	op    opcode.Opcode
	state State
}

func (t *tracker) to(s State) {
	from := t.state
	t.state = s
	t.d.notify(Transition{Opcode: t.op, From: from, To: s})
}

// done returns to Idle after a completed encode.
func (t *tracker) done(o Outcome) Outcome {
	t.to(StateIdle)
	return o
}

// fail returns to Idle through Error.
func (t *tracker) fail(o Outcome) Outcome {
	t.to(StateError)
	t.to(StateIdle)
	return o
}
