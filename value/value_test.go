package value

import (
	"math"
	"syscall"
	"testing"
)

// ---------------------------------------------------------------------------
// Flonum tests
// ---------------------------------------------------------------------------

func TestFlonumRoundTrip(t *testing.T) {
	tests := []float64{
		0.0,
		math.Copysign(0, -1),
		1.0,
		-1.0,
		3.14159265358979,
		math.MaxFloat64,
		math.SmallestNonzeroFloat64,
		-math.MaxFloat64,
		math.Inf(1),
		math.Inf(-1),
	}

	for _, f := range tests {
		v := FromFlonum(f)
		if !v.IsFlonum() {
			t.Errorf("FromFlonum(%v).IsFlonum() = false, want true", f)
			continue
		}
		if got := v.Flonum(); math.Float64bits(got) != math.Float64bits(f) {
			t.Errorf("FromFlonum(%v).Flonum() = %v, want bit-identical", f, got)
		}
	}
}

func TestFlonumNaN(t *testing.T) {
	for _, bits := range []uint64{
		math.Float64bits(math.NaN()),
		0xFFF8000000000000, // negative quiet NaN, as produced by 0/0 on amd64
		0x7FF4000000000000, // signaling NaN
	} {
		v := FromFlonum(math.Float64frombits(bits))
		if !v.IsFlonum() {
			t.Errorf("NaN %#x should be a flonum", bits)
		}
		if !math.IsNaN(v.Flonum()) {
			t.Errorf("NaN %#x did not survive", bits)
		}
	}
}

func TestFlonumTaggedNaNCanonicalized(t *testing.T) {
	// A NaN whose payload looks like an object reference must not become one.
	v := FromFlonum(math.Float64frombits(nanBits | tagObject | 7))
	if v.IsObject() {
		t.Fatal("tagged NaN payload leaked into object space")
	}
	if !v.IsFlonum() || !math.IsNaN(v.Flonum()) {
		t.Fatal("tagged NaN should canonicalize to a NaN flonum")
	}
}

// ---------------------------------------------------------------------------
// Fixnum tests
// ---------------------------------------------------------------------------

func TestFixnumRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 42, -42, MaxFixnum, MinFixnum, 1 << 40, -(1 << 40)} {
		v := FromFixnum(n)
		if !v.IsFixnum() {
			t.Errorf("FromFixnum(%d).IsFixnum() = false", n)
			continue
		}
		if v.IsFlonum() {
			t.Errorf("FromFixnum(%d) also reads as a flonum", n)
		}
		if got := v.Fixnum(); got != n {
			t.Errorf("FromFixnum(%d).Fixnum() = %d", n, got)
		}
	}
}

func TestTryFromFixnumRange(t *testing.T) {
	if _, ok := TryFromFixnum(MaxFixnum + 1); ok {
		t.Error("MaxFixnum+1 should not fit")
	}
	if _, ok := TryFromFixnum(MinFixnum - 1); ok {
		t.Error("MinFixnum-1 should not fit")
	}
	defer func() {
		if recover() == nil {
			t.Error("FromFixnum should panic out of range")
		}
	}()
	FromFixnum(math.MaxInt64)
}

// ---------------------------------------------------------------------------
// Specials, objects, handles
// ---------------------------------------------------------------------------

func TestSpecials(t *testing.T) {
	specials := []Value{Nil, True, False, Unspecified, EOF}
	for i, a := range specials {
		if !a.IsSpecial() {
			t.Errorf("%v should be special", a)
		}
		if a.IsFlonum() || a.IsFixnum() || a.IsObject() {
			t.Errorf("%v misclassified", a)
		}
		for j, b := range specials {
			if i != j && a == b {
				t.Errorf("specials %d and %d collide", i, j)
			}
		}
	}
	if !FromBool(true).Bool() || FromBool(false).Bool() {
		t.Error("FromBool round trip failed")
	}
}

func TestObjectRef(t *testing.T) {
	v := FromObject(12345)
	if !v.IsObject() || v.Object() != 12345 {
		t.Fatalf("object round trip failed: %v", v)
	}
	if v.IsFlonum() || v.IsFixnum() || v.IsHandle() {
		t.Fatal("object misclassified")
	}
}

func TestHandles(t *testing.T) {
	for _, kind := range []HandleKind{HandleFile, HandleLibrary, HandleSymbol} {
		v := FromHandle(kind, 0xDEADBEEF)
		if !v.IsHandle() || !v.IsHandleOf(kind) {
			t.Fatalf("%s handle not recognized", kind)
		}
		k, h := v.Handle()
		if k != kind || h != 0xDEADBEEF {
			t.Errorf("Handle() = %v, %#x", k, h)
		}
	}
	if FromHandle(HandleFile, 1).IsHandleOf(HandleLibrary) {
		t.Error("kinds must be distinguishable")
	}
}

// ---------------------------------------------------------------------------
// Errnos
// ---------------------------------------------------------------------------

func TestErrnoDistinctFromFixnum(t *testing.T) {
	e := FromErrno(syscall.EBADF)
	n := FromFixnum(int64(syscall.EBADF))
	if e == n {
		t.Fatal("errno and fixnum of the same number must differ")
	}
	if e.IsFixnum() || !e.IsErrno() {
		t.Fatal("errno misclassified")
	}
	if e.Errno() != syscall.EBADF {
		t.Errorf("Errno() = %v", e.Errno())
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{FromFixnum(-7), "-7"},
		{FromFlonum(2.5), "2.5"},
		{True, "#t"},
		{False, "#f"},
		{Nil, "()"},
		{Unspecified, "#!unspecified"},
		{FromObject(3), "#<object 3>"},
		{FromHandle(HandleFile, 4), "#<file 4>"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if got := FromErrno(syscall.ENOENT).KindName(); got != "errno" {
		t.Errorf("KindName() = %q", got)
	}
}
