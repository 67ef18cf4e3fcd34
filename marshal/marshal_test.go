package marshal

import (
	stderrors "errors"
	"math"
	"testing"

	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/heap"
	"github.com/wippyai/systrap/opcode"
	"github.com/wippyai/systrap/resource"
	"github.com/wippyai/systrap/value"
)

type fixture struct {
	h   *heap.Heap
	str value.Value
	bv  value.Value
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := heap.New(heap.Options{})
	s, err := h.AllocString("/tmp/x")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := h.AllocBytes([]byte("hi"))
	return &fixture{h: h, str: value.FromObject(uint64(s)), bv: value.FromObject(uint64(b))}
}

func wantKind(t *testing.T, err error, kind errors.Kind) *errors.Error {
	t.Helper()
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("expected *errors.Error, got %v", err)
	}
	if e.Kind != kind {
		t.Fatalf("kind = %s, want %s (%v)", e.Kind, kind, err)
	}
	return e
}

func TestMarshalOpen(t *testing.T) {
	f := newFixture(t)
	c, err := Marshal(opcode.Open, []value.Value{f.str, value.FromFixnum(int64(call.OpenWrite | call.OpenCreate))}, f.h)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	open, ok := c.(call.Open)
	if !ok {
		t.Fatalf("got %T", c)
	}
	if open.Path != "/tmp/x" || open.Flags != call.OpenWrite|call.OpenCreate {
		t.Fatalf("open = %+v", open)
	}
}

func TestMarshalTypedHandles(t *testing.T) {
	f := newFixture(t)
	file := value.FromHandle(value.HandleFile, 0x100001)

	c, err := Marshal(opcode.Write, []value.Value{file, f.bv}, f.h)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	w := c.(call.Write)
	if w.File != resource.Handle(0x100001) || string(w.Data) != "hi" {
		t.Fatalf("write = %+v", w)
	}

	lib := value.FromHandle(value.HandleLibrary, 1)
	_, err = Marshal(opcode.Close, []value.Value{lib}, f.h)
	e := wantKind(t, err, errors.KindTypeMismatch)
	if e.Expected != "file" || e.Actual != "library" {
		t.Fatalf("expected/actual = %q/%q", e.Expected, e.Actual)
	}
}

func TestMarshalErrors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		op   opcode.Opcode
		args []value.Value
		kind errors.Kind
		path string
	}{
		{"too few", opcode.Open, []value.Value{f.str}, errors.KindArity, ""},
		{"too many", opcode.Cwd, []value.Value{value.Nil}, errors.KindArity, ""},
		{"fixnum for flonum", opcode.FlonumSqrt, []value.Value{value.FromFixnum(4)}, errors.KindTypeMismatch, "0"},
		{"int32 overflow", opcode.Exit, []value.Value{value.FromFixnum(math.MaxInt32 + 1)}, errors.KindOverflow, "0"},
		{"negative count", opcode.Read, []value.Value{value.FromHandle(value.HandleFile, 1), value.FromFixnum(-1)}, errors.KindOverflow, "1"},
		{"negative address", opcode.PeekBytes, []value.Value{value.FromFixnum(-8), value.FromFixnum(1)}, errors.KindOverflow, "0"},
		{"bytes for string", opcode.Unlink, []value.Value{f.bv}, errors.KindTypeMismatch, "0"},
		{"string for bytes", opcode.PokeBytes, []value.Value{value.FromFixnum(0), f.str}, errors.KindTypeMismatch, "1"},
		{"fixnum for bool", opcode.BlockSignals, []value.Value{value.FromFixnum(1)}, errors.KindTypeMismatch, "0"},
		{"unknown flags", opcode.Open, []value.Value{f.str, value.FromFixnum(128)}, errors.KindTypeMismatch, "1"},
		{"dead object", opcode.MakeNonrelocatable, []value.Value{value.FromObject(999)}, errors.KindTypeMismatch, "0"},
		{"errno for int", opcode.GC, []value.Value{value.FromErrno(9)}, errors.KindTypeMismatch, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Marshal(tt.op, tt.args, f.h)
			e := wantKind(t, err, tt.kind)
			if e.Phase != errors.PhaseMarshal {
				t.Errorf("phase = %s", e.Phase)
			}
			if !e.IsBadArguments() {
				t.Error("marshal failures are bad arguments")
			}
			if tt.path != "" && (len(e.Path) != 1 || e.Path[0] != tt.path) {
				t.Errorf("path = %v, want [%s]", e.Path, tt.path)
			}
		})
	}
}

func TestMarshalUnknownOpcode(t *testing.T) {
	f := newFixture(t)
	_, err := Marshal(opcode.Unknown, nil, f.h)
	wantKind(t, err, errors.KindInvalidOpcode)
}

func TestMarshalCopiesPayload(t *testing.T) {
	f := newFixture(t)
	c, err := Marshal(opcode.PokeBytes, []value.Value{value.FromFixnum(0x10000), f.bv}, f.h)
	if err != nil {
		t.Fatal(err)
	}
	poke := c.(call.PokeBytes)
	poke.Data[0] = 'X'

	b, _ := f.h.Bytes(heap.ObjectID(f.bv.Object()))
	if string(b) != "hi" {
		t.Fatalf("marshal aliased heap memory: %q", b)
	}
}

func TestMarshalAnyPassesThrough(t *testing.T) {
	f := newFixture(t)
	c, err := Marshal(opcode.SysGlobal, []value.Value{f.str, value.Unspecified}, f.h)
	if err != nil {
		t.Fatal(err)
	}
	if g := c.(call.SysGlobal); g.Value != value.Unspecified || g.Name != "/tmp/x" {
		t.Fatalf("sysglobal = %+v", g)
	}
}

func TestMarshalEveryOpcodeHasABuilder(t *testing.T) {
	f := newFixture(t)
	for _, op := range opcode.All() {
		sig, _ := op.Signature()
		args := make([]value.Value, sig.Arity())
		for i := range args {
			args[i] = value.Nil
		}
		_, err := Marshal(op, args, f.h)
		var e *errors.Error
		if stderrors.As(err, &e) && e.Kind == errors.KindInvalidOpcode {
			t.Errorf("%s has no request builder", op)
		}
	}
}
