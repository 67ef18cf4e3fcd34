package opcode

import (
	"fmt"
)

// Opcode identifies a trap. Ids are the stable contract with compiled code.
type Opcode int32

// Unknown is returned by Resolve for ids outside every family. It is never a
// valid opcode.
const Unknown Opcode = -1

// Core family, ids 0 through 45 with no gaps.
const (
	Open Opcode = iota
	Unlink
	Close
	Read
	Write
	GetResourceUsage
	DumpHeap
	Exit
	Mtime
	Access
	Rename
	PollInput
	Getenv
	GC
	FlonumLog
	FlonumExp
	FlonumSin
	FlonumCos
	FlonumTan
	FlonumAsin
	FlonumAcos
	FlonumAtan
	FlonumAtan2
	FlonumSqrt
	StatsDumpOn
	StatsDumpOff
	IFlush
	GCCtl
	BlockSignals
	FlonumSinh
	FlonumCosh
	System
	FFIApply
	FFIDlopen
	FFIDlsym
	MakeNonrelocatable
	ObjectToAddress
	FFIGetaddr
	SRO
	SysFeature
	PeekBytes
	PokeBytes
	SegmentCodeAddress
	StatsDumpStdout
	Chdir
	Cwd

	coreEnd
)

// Global-slot family.
const (
	SysGlobal Opcode = iota + 91

	globalEnd
)

const (
	coreBase   = Open
	globalBase = SysGlobal
)

// Family groups opcodes that share an id range.
type Family uint8

const (
	FamilyCore Family = iota
	FamilyGlobal
)

func (f Family) String() string {
	switch f {
	case FamilyCore:
		return "core"
	case FamilyGlobal:
		return "global"
	}
	return fmt.Sprintf("family-%d", uint8(f))
}

// Resolve maps a raw trap id to an opcode. It is total over int64: every id
// outside both families yields (Unknown, false).
func Resolve(id int64) (Opcode, bool) {
	switch {
	case id >= int64(coreBase) && id < int64(coreEnd):
		return Opcode(id), true
	case id >= int64(globalBase) && id < int64(globalEnd):
		return Opcode(id), true
	}
	return Unknown, false
}

// Valid reports whether op names a trap.
func (op Opcode) Valid() bool {
	_, ok := Resolve(int64(op))
	return ok
}

// Family returns the family op belongs to.
func (op Opcode) Family() Family {
	if op >= globalBase {
		return FamilyGlobal
	}
	return FamilyCore
}

func (op Opcode) String() string {
	if sig, ok := op.lookup(); ok {
		return sig.Name
	}
	return fmt.Sprintf("{Opcode %d}", int32(op))
}

// Signature returns the static signature of op.
// The returned Args slice is shared and must not be modified.
func (op Opcode) Signature() (Signature, bool) {
	sig, ok := op.lookup()
	if !ok {
		return Signature{}, false
	}
	return *sig, true
}

func (op Opcode) lookup() (*Signature, bool) {
	switch {
	case op >= coreBase && op < coreEnd:
		return &coreTable[op-coreBase], true
	case op >= globalBase && op < globalEnd:
		return &globalTable[op-globalBase], true
	}
	return nil, false
}

// Lookup maps a trap name to its opcode.
func Lookup(name string) (Opcode, bool) {
	op, ok := byName[name]
	if !ok {
		return Unknown, false
	}
	return op, true
}

// All lists every opcode in id order.
func All() []Opcode {
	ops := make([]Opcode, 0, len(coreTable)+len(globalTable))
	for i := range coreTable {
		ops = append(ops, coreBase+Opcode(i))
	}
	for i := range globalTable {
		ops = append(ops, globalBase+Opcode(i))
	}
	return ops
}

var byName map[string]Opcode

func init() {
	if globalBase < coreEnd {
		panic("opcode: global family overlaps core family")
	}
	byName = make(map[string]Opcode, len(coreTable)+len(globalTable))
	for _, op := range All() {
		sig, _ := op.lookup()
		if sig.Name == "" {
			panic(fmt.Sprintf("opcode: %d has no signature", int32(op)))
		}
		if prev, dup := byName[sig.Name]; dup {
			panic(fmt.Sprintf("opcode: name %q used by %d and %d", sig.Name, int32(prev), int32(op)))
		}
		if sig.Shape == ShapeTuple && sig.TupleArity == 0 {
			panic(fmt.Sprintf("opcode: %s is a tuple without arity", sig.Name))
		}
		sig.Family = op.Family()
		byName[sig.Name] = op
	}
}
