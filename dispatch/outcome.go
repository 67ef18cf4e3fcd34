package dispatch

import (
	"fmt"
	"syscall"

	"github.com/wippyai/systrap/opcode"
	"github.com/wippyai/systrap/value"
)

// Status classifies an Outcome.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusPartial
	StatusInvalidOpcode
	StatusBadArguments
	StatusPermissionDenied
	StatusOutOfRange
	// StatusFatal is only seen when a FatalFunc returns instead of aborting.
	StatusFatal
)

var statusNames = [...]string{
	StatusSuccess:          "success",
	StatusFailure:          "failure",
	StatusPartial:          "partial",
	StatusInvalidOpcode:    "invalid_opcode",
	StatusBadArguments:     "bad_arguments",
	StatusPermissionDenied: "permission_denied",
	StatusOutOfRange:       "out_of_range",
	StatusFatal:            "fatal",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status-%d", uint8(s))
}

// Outcome is the result of one trap.
//
// On success Values holds the encoded result. A failure carries the host
// errno unmodified and Values is a single errno value. A partial outcome
// carries both: Values describes the effect that happened and Errno the
// step that failed after it.
type Outcome struct {
	Opcode opcode.Opcode
	Status Status
	Values []value.Value
	Errno  syscall.Errno
	err    error
}

// OK reports whether the trap succeeded.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// Err returns the structured error behind a non-success outcome. A plain
// host failure yields the errno itself.
func (o Outcome) Err() error {
	if o.err != nil {
		return o.err
	}
	if o.Errno != 0 {
		return o.Errno
	}
	return nil
}

// Value returns the first value, or value.Unspecified when there is none.
func (o Outcome) Value() value.Value {
	if len(o.Values) == 0 {
		return value.Unspecified
	}
	return o.Values[0]
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusSuccess:
		return fmt.Sprintf("%s %v", o.Opcode, o.Values)
	case StatusFailure:
		return fmt.Sprintf("%s failed: %v", o.Opcode, o.Errno)
	case StatusPartial:
		return fmt.Sprintf("%s partial %v: %v", o.Opcode, o.Values, o.Errno)
	}
	if o.err != nil {
		return fmt.Sprintf("%s %s: %v", o.Opcode, o.Status, o.err)
	}
	return fmt.Sprintf("%s %s", o.Opcode, o.Status)
}
