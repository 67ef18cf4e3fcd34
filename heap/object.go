package heap

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/systrap"
)

// ObjectID identifies a heap object independently of its address.
type ObjectID uint64

// Kind is the object layout class.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindBytevector
	KindVector
	KindFlonum
	KindCode
)

var kindNames = [...]string{
	KindString:     "string",
	KindBytevector: "bytevector",
	KindVector:     "vector",
	KindFlonum:     "flonum",
	KindCode:       "code",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("kind-%d", uint8(k))
}

// Valid reports whether k names a known layout.
func (k Kind) Valid() bool {
	return k >= KindString && k <= KindCode
}

const (
	// BaseAddress is the address of the first arena byte.
	BaseAddress systrap.Address = 0x10000

	headerSize = 8
	alignment  = 8

	// DefaultGuardBytes is the guard length placed after every payload.
	DefaultGuardBytes = 16

	// GuardByte is the sentinel value guards are filled with.
	GuardByte = 0xA5
)

// header flag bits
const (
	flagPinned   = 1 << 0
	flagReleased = 1 << 1
	flagDirty    = 1 << 2
)

// object is the bookkeeping record for one arena object. The header in the
// arena mirrors kind, flags and length.
type object struct {
	id       ObjectID
	kind     Kind
	off      int // header offset in the arena
	length   int // payload bytes, unpadded
	pinned   bool
	released bool
	dirty    bool
}

func align(n int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

func (o *object) payloadOff() int {
	return o.off + headerSize
}

func (o *object) guardOff() int {
	return o.off + headerSize + align(o.length)
}

func (o *object) span(guard int) int {
	return headerSize + align(o.length) + guard
}

func (o *object) flags() byte {
	var f byte
	if o.pinned {
		f |= flagPinned
	}
	if o.released {
		f |= flagReleased
	}
	if o.dirty {
		f |= flagDirty
	}
	return f
}

// writeHeader stamps kind, flags and length at o.off.
func (o *object) writeHeader(arena []byte) {
	h := arena[o.off : o.off+headerSize]
	h[0] = byte(o.kind)
	h[1] = o.flags()
	h[2], h[3] = 0, 0
	binary.LittleEndian.PutUint32(h[4:], uint32(o.length))
}

// checkHeader reports whether the arena header still agrees with o.
func (o *object) checkHeader(arena []byte) bool {
	h := arena[o.off : o.off+headerSize]
	return Kind(h[0]) == o.kind && binary.LittleEndian.Uint32(h[4:]) == uint32(o.length)
}

// Info describes one live object.
type Info struct {
	ID      ObjectID
	Kind    Kind
	Length  int
	Pinned  bool
	Address systrap.Address // payload address, valid only while pinned
}
