package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"syscall"
)

// Phase indicates where in trap processing the error occurred
type Phase string

const (
	PhaseValidate Phase = "validate" // opcode resolution
	PhaseMarshal  Phase = "marshal"  // managed to native arguments
	PhaseInvoke   Phase = "invoke"   // native handler
	PhaseEncode   Phase = "encode"   // native to managed results
	PhaseMemory   Phase = "memory"   // raw heap access
	PhaseFFI      Phase = "ffi"      // foreign library bridge
	PhaseHeap     Phase = "heap"     // arena management and images
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidOpcode    Kind = "invalid_opcode"
	KindArity            Kind = "arity"
	KindTypeMismatch     Kind = "type_mismatch"
	KindOverflow         Kind = "overflow"
	KindNative           Kind = "native"
	KindPermissionDenied Kind = "permission_denied"
	KindOutOfRange       Kind = "out_of_range"
	KindMisaligned       Kind = "misaligned"
	KindUnsupported      Kind = "unsupported"
	KindNotFound         Kind = "not_found"
	KindExhausted        Kind = "exhausted"
	KindInvalidData      Kind = "invalid_data"
	KindInvalidInput     Kind = "invalid_input"
	KindCorrupt          Kind = "corrupt"
)

// Error is the structured error type used throughout the trap layer
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Op       string
	Expected string
	Actual   string
	Detail   string
	Path     []string
	Errno    syscall.Errno
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Expected != "" || e.Actual != "" {
		b.WriteString(": ")
		if e.Expected != "" && e.Actual != "" {
			b.WriteString("expected ")
			b.WriteString(e.Expected)
			b.WriteString(", got ")
			b.WriteString(e.Actual)
		} else if e.Expected != "" {
			b.WriteString("expected ")
			b.WriteString(e.Expected)
		} else {
			b.WriteString("got ")
			b.WriteString(e.Actual)
		}
	}

	if e.Detail != "" {
		if e.Expected != "" || e.Actual != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Errno != 0 {
		b.WriteString(" (errno ")
		b.WriteString(fmt.Sprint(int(e.Errno)))
		b.WriteString(": ")
		b.WriteString(e.Errno.Error())
		b.WriteByte(')')
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsBadArguments reports whether the error is an arity or type problem
// detected before any handler ran.
func (e *Error) IsBadArguments() bool {
	switch e.Kind {
	case KindArity, KindTypeMismatch, KindOverflow:
		return true
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the opcode name
func (b *Builder) Op(name string) *Builder {
	b.err.Op = name
	return b
}

// Path sets the argument path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Expected sets the expected argument kind
func (b *Builder) Expected(k string) *Builder {
	b.err.Expected = k
	return b
}

// Actual sets the actual argument kind
func (b *Builder) Actual(k string) *Builder {
	b.err.Actual = k
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Errno sets the host error code
func (b *Builder) Errno(errno syscall.Errno) *Builder {
	b.err.Errno = errno
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidOpcode creates an unknown opcode error
func InvalidOpcode(id int64) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidOpcode,
		Detail: fmt.Sprintf("opcode %d is not defined", id),
		Value:  id,
	}
}

// Arity creates an argument count mismatch error
func Arity(op string, want, got int) *Error {
	return &Error{
		Phase:    PhaseMarshal,
		Kind:     KindArity,
		Op:       op,
		Expected: fmt.Sprintf("%d arguments", want),
		Actual:   fmt.Sprintf("%d", got),
	}
}

// TypeMismatch creates an argument kind mismatch error
func TypeMismatch(op string, path []string, expected, actual string) *Error {
	return &Error{
		Phase:    PhaseMarshal,
		Kind:     KindTypeMismatch,
		Op:       op,
		Path:     path,
		Expected: expected,
		Actual:   actual,
	}
}

// Overflow creates an out-of-range integer argument error
func Overflow(op string, path []string, value any, target string) *Error {
	return &Error{
		Phase:    PhaseMarshal,
		Kind:     KindOverflow,
		Op:       op,
		Path:     path,
		Expected: target,
		Detail:   fmt.Sprintf("value %v overflows %s", value, target),
		Value:    value,
	}
}

// Native wraps a host error code and the error that produced it
func Native(phase Phase, op string, errno syscall.Errno, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindNative,
		Op:    op,
		Errno: errno,
		Cause: cause,
	}
}

// PermissionDenied creates a capability or handle validation error
func PermissionDenied(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPermissionDenied,
		Detail: detail,
	}
}

// OutOfRange creates a bounds error for raw address ranges
func OutOfRange(phase Phase, addr uint64, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfRange,
		Detail: fmt.Sprintf("range [%#x, %#x) is outside every permitted region", addr, addr+uint64(length)),
		Value:  addr,
	}
}

// Corrupt creates a heap corruption error. Only corruption escalates to a
// fatal abort.
func Corrupt(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindCorrupt,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// From returns the first *Error in err's chain.
func From(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}
