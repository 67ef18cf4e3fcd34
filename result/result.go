// Package result holds the native results trap handlers return and the
// encoder that turns them into managed values.
package result

import (
	"fmt"
	"syscall"

	"github.com/wippyai/systrap/opcode"
	"github.com/wippyai/systrap/resource"
	"github.com/wippyai/systrap/value"
)

// Shape aliases opcode.Shape so handlers need only this package.
type Shape = opcode.Shape

const (
	ShapeUnspecified = opcode.ShapeUnspecified
	ShapeValue       = opcode.ShapeValue
	ShapeTuple       = opcode.ShapeTuple
	ShapeStatus      = opcode.ShapeStatus
)

// Handle is a resource handle together with the kind it is exposed as.
type Handle struct {
	Kind   value.HandleKind
	Handle resource.Handle
}

// Result is what a native handler produces.
//
// A status result with a nonzero Errno and no values is a failure. A status
// result with both values and an Errno is partial: the values describe the
// effect that did happen and Errno the step that failed afterwards.
type Result struct {
	Values []any
	Shape  Shape
	Errno  syscall.Errno
}

// Unspecified is the result of traps that return nothing.
func Unspecified() Result {
	return Result{Shape: ShapeUnspecified}
}

// Value is a single-value result.
func Value(v any) Result {
	return Result{Shape: ShapeValue, Values: []any{v}}
}

// Tuple is a fixed-arity multi-value result.
func Tuple(vs ...any) Result {
	return Result{Shape: ShapeTuple, Values: vs}
}

// Ok is a successful status result. Several values form the success tuple.
func Ok(vs ...any) Result {
	return Result{Shape: ShapeStatus, Values: vs}
}

// Fail is a failed status result carrying a host errno.
func Fail(errno syscall.Errno) Result {
	return Result{Shape: ShapeStatus, Errno: errno}
}

// Partial is a status result whose effect happened before errno occurred.
func Partial(errno syscall.Errno, vs ...any) Result {
	return Result{Shape: ShapeStatus, Values: vs, Errno: errno}
}

// Failed reports whether r is a status failure.
func (r Result) Failed() bool {
	return r.Shape == ShapeStatus && r.Errno != 0 && len(r.Values) == 0
}

// IsPartial reports whether r is a partial status result.
func (r Result) IsPartial() bool {
	return r.Shape == ShapeStatus && r.Errno != 0 && len(r.Values) > 0
}

func (r Result) String() string {
	switch {
	case r.Failed():
		return fmt.Sprintf("status(errno %d)", int(r.Errno))
	case r.IsPartial():
		return fmt.Sprintf("partial(%v, errno %d)", r.Values, int(r.Errno))
	}
	return fmt.Sprintf("%s%v", r.Shape, r.Values)
}
