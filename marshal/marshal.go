// Package marshal converts a managed argument list into a typed trap request.
//
// Marshaling never has side effects: strings and bytevectors are copied out
// of the heap, handles are unwrapped but not looked up, and the first bad
// argument stops the conversion.
package marshal

import (
	"math"
	"strconv"

	"github.com/wippyai/systrap"
	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/heap"
	"github.com/wippyai/systrap/opcode"
	"github.com/wippyai/systrap/resource"
	"github.com/wippyai/systrap/value"
)

// Objects is the read-only heap view marshaling needs.
type Objects interface {
	Payload(id heap.ObjectID) (heap.Kind, []byte, error)
	Live(id heap.ObjectID) bool
}

// Marshal validates args against the signature of op and builds the request.
func Marshal(op opcode.Opcode, args []value.Value, objs Objects) (call.Call, error) {
	sig, ok := op.Signature()
	if !ok {
		return nil, errors.InvalidOpcode(int64(op))
	}
	if len(args) != sig.Arity() {
		return nil, errors.Arity(sig.Name, sig.Arity(), len(args))
	}

	r := &reader{op: sig.Name, args: args, objs: objs}
	c := build(op, r)
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

func build(op opcode.Opcode, r *reader) call.Call {
	switch op {
	case opcode.Open:
		return call.Open{Path: r.string(0), Flags: r.openFlags(1)}
	case opcode.Unlink:
		return call.Unlink{Path: r.string(0)}
	case opcode.Close:
		return call.Close{File: r.handle(0, value.HandleFile)}
	case opcode.Read:
		return call.Read{File: r.handle(0, value.HandleFile), Count: r.count(1)}
	case opcode.Write:
		return call.Write{File: r.handle(0, value.HandleFile), Data: r.bytes(1)}
	case opcode.GetResourceUsage:
		return call.GetResourceUsage{}
	case opcode.DumpHeap:
		return call.DumpHeap{Path: r.string(0), Entry: r.string(1)}
	case opcode.Exit:
		return call.Exit{Code: r.int32(0)}
	case opcode.Mtime:
		return call.Mtime{Path: r.string(0)}
	case opcode.Access:
		return call.Access{Path: r.string(0), Mode: r.int32(1)}
	case opcode.Rename:
		return call.Rename{From: r.string(0), To: r.string(1)}
	case opcode.PollInput:
		return call.PollInput{File: r.handle(0, value.HandleFile)}
	case opcode.Getenv:
		return call.Getenv{Name: r.string(0)}
	case opcode.GC:
		return call.GC{Kind: r.int32(0)}

	case opcode.FlonumLog:
		return call.FlonumLog{X: r.flonum(0)}
	case opcode.FlonumExp:
		return call.FlonumExp{X: r.flonum(0)}
	case opcode.FlonumSin:
		return call.FlonumSin{X: r.flonum(0)}
	case opcode.FlonumCos:
		return call.FlonumCos{X: r.flonum(0)}
	case opcode.FlonumTan:
		return call.FlonumTan{X: r.flonum(0)}
	case opcode.FlonumAsin:
		return call.FlonumAsin{X: r.flonum(0)}
	case opcode.FlonumAcos:
		return call.FlonumAcos{X: r.flonum(0)}
	case opcode.FlonumAtan:
		return call.FlonumAtan{X: r.flonum(0)}
	case opcode.FlonumAtan2:
		return call.FlonumAtan2{Y: r.flonum(0), X: r.flonum(1)}
	case opcode.FlonumSqrt:
		return call.FlonumSqrt{X: r.flonum(0)}
	case opcode.FlonumSinh:
		return call.FlonumSinh{X: r.flonum(0)}
	case opcode.FlonumCosh:
		return call.FlonumCosh{X: r.flonum(0)}

	case opcode.StatsDumpOn:
		return call.StatsDumpOn{Path: r.string(0)}
	case opcode.StatsDumpOff:
		return call.StatsDumpOff{}
	case opcode.IFlush:
		return call.IFlush{Code: r.object(0)}
	case opcode.GCCtl:
		return call.GCCtl{Op: r.int32(0), Arg: r.int64(1)}
	case opcode.BlockSignals:
		return call.BlockSignals{Block: r.bool(0)}
	case opcode.System:
		return call.System{Command: r.string(0)}

	case opcode.FFIApply:
		return call.FFIApply{Symbol: r.handle(0, value.HandleSymbol), Args: r.bytes(1)}
	case opcode.FFIDlopen:
		return call.FFIDlopen{Path: r.string(0)}
	case opcode.FFIDlsym:
		return call.FFIDlsym{Library: r.handle(0, value.HandleLibrary), Name: r.string(1)}

	case opcode.MakeNonrelocatable:
		return call.MakeNonrelocatable{Object: r.object(0)}
	case opcode.ObjectToAddress:
		return call.ObjectToAddress{Object: r.object(0)}
	case opcode.FFIGetaddr:
		return call.FFIGetaddr{Name: r.string(0)}
	case opcode.SRO:
		return call.SRO{Kind: r.int32(0), Limit: r.int32(1)}
	case opcode.SysFeature:
		return call.SysFeature{Name: r.string(0)}
	case opcode.PeekBytes:
		return call.PeekBytes{Addr: r.address(0), Count: r.count(1)}
	case opcode.PokeBytes:
		return call.PokeBytes{Addr: r.address(0), Data: r.bytes(1)}
	case opcode.SegmentCodeAddress:
		return call.SegmentCodeAddress{Code: r.object(0), Offset: r.int32(1)}
	case opcode.StatsDumpStdout:
		return call.StatsDumpStdout{}
	case opcode.Chdir:
		return call.Chdir{Path: r.string(0)}
	case opcode.Cwd:
		return call.Cwd{}

	case opcode.SysGlobal:
		return call.SysGlobal{Name: r.string(0), Value: r.any(1)}
	}
	r.fail(errors.InvalidOpcode(int64(op)))
	return nil
}

// reader converts arguments and keeps the first failure.
type reader struct {
	err  error
	objs Objects
	op   string
	args []value.Value
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func path(i int) []string {
	return []string{strconv.Itoa(i)}
}

// arg returns argument i, or false once an earlier argument failed.
func (r *reader) arg(i int) (value.Value, bool) {
	if r.err != nil {
		return value.Unspecified, false
	}
	return r.args[i], true
}

func (r *reader) mismatch(i int, expected opcode.ArgKind, v value.Value) {
	r.fail(errors.TypeMismatch(r.op, path(i), expected.String(), v.KindName()))
}

func (r *reader) fixnum(i int, kind opcode.ArgKind) (int64, bool) {
	v, ok := r.arg(i)
	if !ok {
		return 0, false
	}
	if !v.IsFixnum() {
		r.mismatch(i, kind, v)
		return 0, false
	}
	return v.Fixnum(), true
}

func (r *reader) int32(i int) int32 {
	n, ok := r.fixnum(i, opcode.ArgInt32)
	if !ok {
		return 0
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		r.fail(errors.Overflow(r.op, path(i), n, "int32"))
		return 0
	}
	return int32(n)
}

func (r *reader) int64(i int) int64 {
	n, _ := r.fixnum(i, opcode.ArgInt64)
	return n
}

func (r *reader) count(i int) int32 {
	n, ok := r.fixnum(i, opcode.ArgCount)
	if !ok {
		return 0
	}
	if n < 0 || n > math.MaxInt32 {
		r.fail(errors.Overflow(r.op, path(i), n, "count"))
		return 0
	}
	return int32(n)
}

func (r *reader) address(i int) systrap.Address {
	n, ok := r.fixnum(i, opcode.ArgAddress)
	if !ok {
		return 0
	}
	if n < 0 {
		r.fail(errors.Overflow(r.op, path(i), n, "address"))
		return 0
	}
	return systrap.Address(n)
}

func (r *reader) openFlags(i int) call.OpenFlags {
	f := call.OpenFlags(r.int32(i))
	if r.err == nil && !f.Valid() {
		r.fail(errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
			Op(r.op).
			Path(path(i)...).
			Expected("open flags").
			Value(int32(f)).
			Detail("unknown flag bits %#x", int32(f)).
			Build())
		return 0
	}
	return f
}

func (r *reader) flonum(i int) float64 {
	v, ok := r.arg(i)
	if !ok {
		return 0
	}
	if !v.IsFlonum() {
		r.mismatch(i, opcode.ArgFlonum, v)
		return 0
	}
	return v.Flonum()
}

func (r *reader) bool(i int) bool {
	v, ok := r.arg(i)
	if !ok {
		return false
	}
	if !v.IsBool() {
		r.mismatch(i, opcode.ArgBool, v)
		return false
	}
	return v.Bool()
}

func (r *reader) handle(i int, kind value.HandleKind) resource.Handle {
	v, ok := r.arg(i)
	if !ok {
		return 0
	}
	if !v.IsHandleOf(kind) {
		r.fail(errors.TypeMismatch(r.op, path(i), kind.String(), v.KindName()))
		return 0
	}
	_, h := v.Handle()
	return resource.Handle(h)
}

func (r *reader) object(i int) heap.ObjectID {
	v, ok := r.arg(i)
	if !ok {
		return 0
	}
	if !v.IsObject() {
		r.mismatch(i, opcode.ArgObject, v)
		return 0
	}
	id := heap.ObjectID(v.Object())
	if !r.objs.Live(id) {
		r.fail(errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
			Op(r.op).
			Path(path(i)...).
			Expected("live object").
			Actual("dead object").
			Value(uint64(id)).
			Build())
		return 0
	}
	return id
}

// payload copies the payload of a live object of the wanted kind.
func (r *reader) payload(i int, want heap.Kind, expected opcode.ArgKind) []byte {
	v, ok := r.arg(i)
	if !ok {
		return nil
	}
	if !v.IsObject() {
		r.mismatch(i, expected, v)
		return nil
	}
	kind, b, err := r.objs.Payload(heap.ObjectID(v.Object()))
	if err != nil {
		r.fail(errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
			Op(r.op).
			Path(path(i)...).
			Expected(expected.String()).
			Actual("dead object").
			Cause(err).
			Build())
		return nil
	}
	if kind != want {
		r.fail(errors.TypeMismatch(r.op, path(i), expected.String(), kind.String()))
		return nil
	}
	return b
}

func (r *reader) string(i int) string {
	return string(r.payload(i, heap.KindString, opcode.ArgString))
}

func (r *reader) bytes(i int) []byte {
	b := r.payload(i, heap.KindBytevector, opcode.ArgBytes)
	if b == nil && r.err == nil {
		return []byte{}
	}
	return b
}

func (r *reader) any(i int) value.Value {
	v, _ := r.arg(i)
	return v
}
