package result

import (
	"math"
	"syscall"
	"testing"

	"github.com/wippyai/systrap"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/heap"
	"github.com/wippyai/systrap/opcode"
	"github.com/wippyai/systrap/resource"
	"github.com/wippyai/systrap/value"
)

func newEncoder(t *testing.T) (*Encoder, *heap.Heap) {
	t.Helper()
	h := heap.New(heap.Options{})
	return NewEncoder(h), h
}

func TestEncodeShapes(t *testing.T) {
	enc, h := newEncoder(t)

	vals, err := enc.Encode(opcode.StatsDumpOff, Unspecified())
	if err != nil || len(vals) != 1 || vals[0] != value.Unspecified {
		t.Fatalf("unspecified = %v, %v", vals, err)
	}

	vals, err = enc.Encode(opcode.FlonumSqrt, Value(1.5))
	if err != nil || vals[0].Flonum() != 1.5 {
		t.Fatalf("value = %v, %v", vals, err)
	}

	usage := make([]any, 12)
	for i := range usage {
		usage[i] = int64(i)
	}
	vals, err = enc.Encode(opcode.GetResourceUsage, Tuple(usage...))
	if err != nil || len(vals) != 12 || vals[11].Fixnum() != 11 {
		t.Fatalf("tuple = %v, %v", vals, err)
	}

	vals, err = enc.Encode(opcode.Read, Ok(3, []byte("abc")))
	if err != nil || len(vals) != 2 || vals[0].Fixnum() != 3 {
		t.Fatalf("read = %v, %v", vals, err)
	}
	if b, _ := h.Bytes(heap.ObjectID(vals[1].Object())); string(b) != "abc" {
		t.Fatalf("read bytes = %q", b)
	}
}

func TestEncodeFailureIsErrno(t *testing.T) {
	enc, _ := newEncoder(t)
	vals, err := enc.Encode(opcode.Close, Fail(syscall.EBADF))
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != 1 || !vals[0].IsErrno() || vals[0].Errno() != syscall.EBADF {
		t.Fatalf("vals = %v", vals)
	}
	if vals[0] == value.FromFixnum(int64(syscall.EBADF)) {
		t.Fatal("errno must not look like a fixnum success")
	}
}

func TestEncodePartialKeepsValue(t *testing.T) {
	enc, _ := newEncoder(t)
	r := Partial(syscall.ENOSPC, 4)
	if !r.IsPartial() || r.Failed() {
		t.Fatal("partial misclassified")
	}
	vals, err := enc.Encode(opcode.Write, r)
	if err != nil || len(vals) != 1 || vals[0].Fixnum() != 4 {
		t.Fatalf("vals = %v, %v", vals, err)
	}
}

func TestScalarsStopAtAllocation(t *testing.T) {
	h := heap.New(heap.Options{InitialBytes: 64, MaxBytes: 64})
	enc := NewEncoder(h)
	r := Ok(100, make([]byte, 100))
	if _, err := enc.Encode(opcode.Read, r); err == nil {
		t.Fatal("encode into a full heap should fail")
	}
	vals := enc.Scalars(r)
	if len(vals) != 1 || vals[0].Fixnum() != 100 {
		t.Fatalf("Scalars = %v", vals)
	}
	if s := h.Stats(); s.LiveObjects != 0 {
		t.Fatalf("Scalars allocated %d objects", s.LiveObjects)
	}
}

func TestEncodeConversions(t *testing.T) {
	enc, h := newEncoder(t)
	obj, _ := h.AllocString("x")

	tests := []struct {
		name  string
		in    any
		check func(value.Value) bool
	}{
		{"nil", nil, func(v value.Value) bool { return v == value.Unspecified }},
		{"bool", true, func(v value.Value) bool { return v == value.True }},
		{"int32", int32(-5), func(v value.Value) bool { return v.IsFixnum() && v.Fixnum() == -5 }},
		{"big int64", int64(math.MaxInt64), func(v value.Value) bool { return v.IsFlonum() }},
		{"address", systrap.Address(0x10008), func(v value.Value) bool { return v.IsFixnum() && v.Fixnum() == 0x10008 }},
		{"object", obj, func(v value.Value) bool { return v.IsObject() && v.Object() == uint64(obj) }},
		{"handle", Handle{Kind: value.HandleLibrary, Handle: resource.Handle(7)}, func(v value.Value) bool { return v.IsHandleOf(value.HandleLibrary) }},
		{"string", "hi", func(v value.Value) bool {
			s, err := h.String(heap.ObjectID(v.Object()))
			return err == nil && s == "hi"
		}},
		{"vector", []value.Value{value.True}, func(v value.Value) bool {
			vs, err := h.Vector(heap.ObjectID(v.Object()))
			return err == nil && len(vs) == 1 && vs[0] == value.True
		}},
		{"managed", value.EOF, func(v value.Value) bool { return v == value.EOF }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vals, err := enc.Encode(opcode.Getenv, Value(tt.in))
			if err != nil {
				t.Fatal(err)
			}
			if !tt.check(vals[0]) {
				t.Errorf("encoded %v as %v", tt.in, vals[0])
			}
		})
	}
}

func TestEncodeRejectsMismatches(t *testing.T) {
	enc, _ := newEncoder(t)
	tests := []struct {
		name string
		op   opcode.Opcode
		r    Result
		kind errors.Kind
	}{
		{"wrong shape", opcode.FlonumSqrt, Ok(1.0), errors.KindInvalidData},
		{"tuple arity", opcode.GetResourceUsage, Tuple(1, 2), errors.KindInvalidData},
		{"status tuple arity", opcode.Mtime, Ok(2024), errors.KindInvalidData},
		{"two values", opcode.Getenv, Result{Shape: ShapeValue, Values: []any{1, 2}}, errors.KindInvalidData},
		{"unencodable", opcode.Getenv, Value(struct{}{}), errors.KindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Encode(tt.op, tt.r)
			e, ok := errors.From(err)
			if !ok || e.Kind != tt.kind || e.Phase != errors.PhaseEncode {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestEncodeExhaustedHeap(t *testing.T) {
	h := heap.New(heap.Options{InitialBytes: 64, MaxBytes: 64})
	enc := NewEncoder(h)
	_, err := enc.Encode(opcode.Cwd, Ok(string(make([]byte, 100))))
	e, ok := errors.From(err)
	if !ok || e.Kind != errors.KindExhausted {
		t.Fatalf("err = %v", err)
	}
}
