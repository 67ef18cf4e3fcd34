package value

import (
	"fmt"
	"math"
	"strconv"
	"syscall"
)

// Value is a managed value as it crosses the trap boundary.
//
// All values are 64-bit IEEE 754 doubles. Non-flonum values live in the
// quiet NaN space with a 3-bit tag and a 48-bit payload:
//   - Flonum: native double (every NaN that is not tagged is a flonum)
//   - Fixnum: 48-bit signed integer
//   - Object: heap object id
//   - Special: nil, #t, #f, unspecified, eof
//   - Handle: resource kind (4 bits) and resource handle (32 bits)
//   - Errno: host error code, never equal to any fixnum
type Value uint64

const (
	// quiet NaN, sign bit clear
	nanBits uint64 = 0x7FF8000000000000

	tagMask     uint64 = 0x0007000000000000
	payloadMask uint64 = 0x0000FFFFFFFFFFFF

	// sign, exponent, quiet bit and tag
	boxMask uint64 = 0xFFFF000000000000

	tagObject  uint64 = 0x0001000000000000
	tagFixnum  uint64 = 0x0002000000000000
	tagSpecial uint64 = 0x0003000000000000
	tagHandle  uint64 = 0x0004000000000000
	tagErrno   uint64 = 0x0005000000000000

	fixnumSignBit    uint64 = 0x0000800000000000
	fixnumSignExtend uint64 = 0xFFFF000000000000

	handleKindShift        = 44
	handleKindMask  uint64 = 0xF
	handleMask      uint64 = 0xFFFFFFFF
)

const (
	specialNil uint64 = iota
	specialTrue
	specialFalse
	specialUnspecified
	specialEOF
)

// Pre-defined special values
const (
	Nil         Value = Value(nanBits | tagSpecial | specialNil)
	True        Value = Value(nanBits | tagSpecial | specialTrue)
	False       Value = Value(nanBits | tagSpecial | specialFalse)
	Unspecified Value = Value(nanBits | tagSpecial | specialUnspecified)
	EOF         Value = Value(nanBits | tagSpecial | specialEOF)
)

// Fixnum range (48-bit signed)
const (
	MaxFixnum int64 = (1 << 47) - 1
	MinFixnum int64 = -(1 << 47)

	// FixnumBits is the width of the fixnum payload.
	FixnumBits = 48
)

// MaxObjectID is the largest object id an object reference can carry.
const MaxObjectID uint64 = payloadMask

// HandleKind identifies the resource class a handle value wraps.
type HandleKind uint8

const (
	HandleFile HandleKind = iota + 1
	HandleLibrary
	HandleSymbol
)

func (k HandleKind) String() string {
	switch k {
	case HandleFile:
		return "file"
	case HandleLibrary:
		return "library"
	case HandleSymbol:
		return "symbol"
	}
	return fmt.Sprintf("handle-kind-%d", uint8(k))
}

func (v Value) tag() uint64 {
	return uint64(v) & boxMask
}

func (v Value) boxed() bool {
	bits := uint64(v)
	return bits&(boxMask&^tagMask) == nanBits && bits&tagMask != 0
}

// ---------------------------------------------------------------------------
// Flonums
// ---------------------------------------------------------------------------

// IsFlonum reports whether v is a double, including NaN and infinities.
func (v Value) IsFlonum() bool {
	return !v.boxed()
}

// Flonum returns v as a float64.
// Panics if v is not a flonum.
func (v Value) Flonum() float64 {
	if !v.IsFlonum() {
		panic("Value.Flonum: not a flonum")
	}
	return math.Float64frombits(uint64(v))
}

// FromFlonum creates a Value from a float64. NaNs whose payload would collide
// with a tag are canonicalized.
func FromFlonum(f float64) Value {
	bits := math.Float64bits(f)
	v := Value(bits)
	if v.boxed() {
		return Value(math.Float64bits(math.NaN()))
	}
	return v
}

// ---------------------------------------------------------------------------
// Fixnums
// ---------------------------------------------------------------------------

// IsFixnum reports whether v is a small integer.
func (v Value) IsFixnum() bool {
	return v.tag() == nanBits|tagFixnum
}

// Fixnum returns v as an int64.
// Panics if v is not a fixnum.
func (v Value) Fixnum() int64 {
	if !v.IsFixnum() {
		panic("Value.Fixnum: not a fixnum")
	}
	payload := uint64(v) & payloadMask
	if payload&fixnumSignBit != 0 {
		payload |= fixnumSignExtend
	}
	return int64(payload)
}

// FromFixnum creates a Value from an int64.
// Panics if n is outside the fixnum range.
func FromFixnum(n int64) Value {
	v, ok := TryFromFixnum(n)
	if !ok {
		panic("FromFixnum: value out of range")
	}
	return v
}

// TryFromFixnum creates a Value from an int64, returning false if out of range.
func TryFromFixnum(n int64) (Value, bool) {
	if n > MaxFixnum || n < MinFixnum {
		return Nil, false
	}
	return Value(nanBits | tagFixnum | (uint64(n) & payloadMask)), true
}

// ---------------------------------------------------------------------------
// Specials
// ---------------------------------------------------------------------------

// IsSpecial reports whether v is nil, a boolean, unspecified or eof.
func (v Value) IsSpecial() bool {
	return v.tag() == nanBits|tagSpecial
}

// IsBool reports whether v is #t or #f.
func (v Value) IsBool() bool {
	return v == True || v == False
}

// Bool returns v as a Go bool.
// Panics if v is not a boolean.
func (v Value) Bool() bool {
	switch v {
	case True:
		return true
	case False:
		return false
	}
	panic("Value.Bool: not a boolean")
}

// FromBool creates #t or #f.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// IsObject reports whether v references a heap object.
func (v Value) IsObject() bool {
	return v.tag() == nanBits|tagObject
}

// Object returns the heap object id v references.
// Panics if v is not an object reference.
func (v Value) Object() uint64 {
	if !v.IsObject() {
		panic("Value.Object: not an object")
	}
	return uint64(v) & payloadMask
}

// FromObject creates an object reference.
// Panics if id does not fit in the payload.
func FromObject(id uint64) Value {
	if id > MaxObjectID {
		panic("FromObject: id out of range")
	}
	return Value(nanBits | tagObject | id)
}

// ---------------------------------------------------------------------------
// Handles
// ---------------------------------------------------------------------------

// IsHandle reports whether v wraps a resource handle.
func (v Value) IsHandle() bool {
	return v.tag() == nanBits|tagHandle
}

// IsHandleOf reports whether v wraps a handle of the given kind.
func (v Value) IsHandleOf(kind HandleKind) bool {
	return v.IsHandle() && v.HandleKind() == kind
}

// HandleKind returns the resource kind of a handle value.
func (v Value) HandleKind() HandleKind {
	return HandleKind((uint64(v) >> handleKindShift) & handleKindMask)
}

// Handle returns the resource kind and raw handle v wraps.
// Panics if v is not a handle.
func (v Value) Handle() (HandleKind, uint32) {
	if !v.IsHandle() {
		panic("Value.Handle: not a handle")
	}
	return v.HandleKind(), uint32(uint64(v) & handleMask)
}

// FromHandle wraps a resource handle.
func FromHandle(kind HandleKind, h uint32) Value {
	return Value(nanBits | tagHandle | (uint64(kind)&handleKindMask)<<handleKindShift | uint64(h))
}

// ---------------------------------------------------------------------------
// Errnos
// ---------------------------------------------------------------------------

// IsErrno reports whether v carries a host error code.
func (v Value) IsErrno() bool {
	return v.tag() == nanBits|tagErrno
}

// Errno returns the host error code v carries.
// Panics if v is not an errno.
func (v Value) Errno() syscall.Errno {
	if !v.IsErrno() {
		panic("Value.Errno: not an errno")
	}
	return syscall.Errno(uint64(v) & payloadMask)
}

// FromErrno wraps a host error code.
func FromErrno(e syscall.Errno) Value {
	return Value(nanBits | tagErrno | (uint64(e) & payloadMask))
}

// ---------------------------------------------------------------------------
// Printing
// ---------------------------------------------------------------------------

// KindName names the value's kind, as used in argument errors.
func (v Value) KindName() string {
	switch {
	case v.IsFlonum():
		return "flonum"
	case v.IsFixnum():
		return "fixnum"
	case v.IsObject():
		return "object"
	case v.IsHandle():
		return v.HandleKind().String()
	case v.IsErrno():
		return "errno"
	}
	switch v {
	case Nil:
		return "nil"
	case True, False:
		return "boolean"
	case Unspecified:
		return "unspecified"
	case EOF:
		return "eof"
	}
	return "unknown"
}

func (v Value) String() string {
	switch {
	case v.IsFlonum():
		return strconv.FormatFloat(v.Flonum(), 'g', -1, 64)
	case v.IsFixnum():
		return strconv.FormatInt(v.Fixnum(), 10)
	case v.IsObject():
		return fmt.Sprintf("#<object %d>", v.Object())
	case v.IsHandle():
		kind, h := v.Handle()
		return fmt.Sprintf("#<%s %d>", kind, h)
	case v.IsErrno():
		e := v.Errno()
		return fmt.Sprintf("#<errno %d %s>", int(e), e.Error())
	}
	switch v {
	case Nil:
		return "()"
	case True:
		return "#t"
	case False:
		return "#f"
	case Unspecified:
		return "#!unspecified"
	case EOF:
		return "#!eof"
	}
	return fmt.Sprintf("#<unknown %#x>", uint64(v))
}
