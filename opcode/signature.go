package opcode

import "fmt"

// ArgKind is the native type an argument marshals to.
type ArgKind uint8

const (
	ArgAny ArgKind = iota
	ArgInt32
	ArgInt64
	ArgCount // non-negative int32
	ArgFlonum
	ArgString
	ArgBytes
	ArgBool
	ArgFile
	ArgLibrary
	ArgSymbol
	ArgObject
	ArgAddress
)

var argKindNames = [...]string{
	ArgAny:     "any",
	ArgInt32:   "int32",
	ArgInt64:   "int64",
	ArgCount:   "count",
	ArgFlonum:  "flonum",
	ArgString:  "string",
	ArgBytes:   "bytevector",
	ArgBool:    "boolean",
	ArgFile:    "file",
	ArgLibrary: "library",
	ArgSymbol:  "symbol",
	ArgObject:  "object",
	ArgAddress: "address",
}

func (k ArgKind) String() string {
	if int(k) < len(argKindNames) {
		return argKindNames[k]
	}
	return fmt.Sprintf("arg-%d", uint8(k))
}

// Shape is the form of a native result.
type Shape uint8

const (
	// ShapeUnspecified carries no value.
	ShapeUnspecified Shape = iota
	// ShapeValue carries exactly one value.
	ShapeValue
	// ShapeTuple carries TupleArity values.
	ShapeTuple
	// ShapeStatus carries a value on success or a host errno.
	ShapeStatus
)

func (s Shape) String() string {
	switch s {
	case ShapeUnspecified:
		return "unspecified"
	case ShapeValue:
		return "value"
	case ShapeTuple:
		return "tuple"
	case ShapeStatus:
		return "status"
	}
	return fmt.Sprintf("shape-%d", uint8(s))
}

// LockClass names the mutex a handler runs under. Handlers in different
// classes never wait on each other.
type LockClass uint8

const (
	LockNone LockClass = iota
	LockGC
	LockGlobals
	LockSignals
	LockStats
	LockFFI
	LockProcess

	NumLockClasses
)

var lockNames = [...]string{
	LockNone:    "none",
	LockGC:      "gc",
	LockGlobals: "globals",
	LockSignals: "signals",
	LockStats:   "stats",
	LockFFI:     "ffi",
	LockProcess: "process",
}

func (l LockClass) String() string {
	if int(l) < len(lockNames) {
		return lockNames[l]
	}
	return fmt.Sprintf("lock-%d", uint8(l))
}

// Signature is the static description of one trap.
type Signature struct {
	Name   string
	Family Family
	Args   []ArgKind
	Shape  Shape
	// TupleArity is the number of values a tuple result carries; for a
	// status result it is the arity of the success payload when that
	// payload is itself a tuple.
	TupleArity int
	Lock       LockClass
	// Partial marks status results that may report a completed effect
	// together with a later errno.
	Partial bool
}

// Arity returns the number of arguments the trap takes.
func (s Signature) Arity() int {
	return len(s.Args)
}

func args(kinds ...ArgKind) []ArgKind {
	return kinds
}

func flonum1(name string) Signature {
	return Signature{Name: name, Args: args(ArgFlonum), Shape: ShapeValue}
}

var coreTable = [coreEnd - coreBase]Signature{
	Open:             {Name: "open", Args: args(ArgString, ArgInt32), Shape: ShapeStatus},
	Unlink:           {Name: "unlink", Args: args(ArgString), Shape: ShapeStatus},
	Close:            {Name: "close", Args: args(ArgFile), Shape: ShapeStatus},
	Read:             {Name: "read", Args: args(ArgFile, ArgCount), Shape: ShapeStatus, TupleArity: 2},
	Write:            {Name: "write", Args: args(ArgFile, ArgBytes), Shape: ShapeStatus, Partial: true},
	GetResourceUsage: {Name: "get_resource_usage", Shape: ShapeTuple, TupleArity: 12, Lock: LockGC},
	DumpHeap:         {Name: "dump_heap", Args: args(ArgString, ArgString), Shape: ShapeStatus, Lock: LockGC},
	Exit:             {Name: "exit", Args: args(ArgInt32), Shape: ShapeUnspecified, Lock: LockProcess},
	Mtime:            {Name: "mtime", Args: args(ArgString), Shape: ShapeStatus, TupleArity: 6},
	Access:           {Name: "access", Args: args(ArgString, ArgInt32), Shape: ShapeStatus},
	Rename:           {Name: "rename", Args: args(ArgString, ArgString), Shape: ShapeStatus},
	PollInput:        {Name: "pollinput", Args: args(ArgFile), Shape: ShapeStatus},
	Getenv:           {Name: "getenv", Args: args(ArgString), Shape: ShapeValue},
	GC:               {Name: "gc", Args: args(ArgInt32), Shape: ShapeValue, Lock: LockGC},

	FlonumLog:   flonum1("flonum_log"),
	FlonumExp:   flonum1("flonum_exp"),
	FlonumSin:   flonum1("flonum_sin"),
	FlonumCos:   flonum1("flonum_cos"),
	FlonumTan:   flonum1("flonum_tan"),
	FlonumAsin:  flonum1("flonum_asin"),
	FlonumAcos:  flonum1("flonum_acos"),
	FlonumAtan:  flonum1("flonum_atan"),
	FlonumAtan2: {Name: "flonum_atan2", Args: args(ArgFlonum, ArgFlonum), Shape: ShapeValue},
	FlonumSqrt:  flonum1("flonum_sqrt"),

	StatsDumpOn:  {Name: "stats_dump_on", Args: args(ArgString), Shape: ShapeStatus, Lock: LockStats},
	StatsDumpOff: {Name: "stats_dump_off", Shape: ShapeUnspecified, Lock: LockStats},
	IFlush:       {Name: "iflush", Args: args(ArgObject), Shape: ShapeUnspecified, Lock: LockGC},
	GCCtl:        {Name: "gcctl", Args: args(ArgInt32, ArgInt64), Shape: ShapeValue, Lock: LockGC},
	BlockSignals: {Name: "block_signals", Args: args(ArgBool), Shape: ShapeValue, Lock: LockSignals},
	FlonumSinh:   flonum1("flonum_sinh"),
	FlonumCosh:   flonum1("flonum_cosh"),
	System:       {Name: "system", Args: args(ArgString), Shape: ShapeStatus, Lock: LockProcess},

	FFIApply:  {Name: "c_ffi_apply", Args: args(ArgSymbol, ArgBytes), Shape: ShapeStatus, Lock: LockFFI},
	FFIDlopen: {Name: "c_ffi_dlopen", Args: args(ArgString), Shape: ShapeStatus, Lock: LockFFI},
	FFIDlsym:  {Name: "c_ffi_dlsym", Args: args(ArgLibrary, ArgString), Shape: ShapeStatus, Lock: LockFFI},

	MakeNonrelocatable: {Name: "make_nonrelocatable", Args: args(ArgObject), Shape: ShapeValue, Lock: LockGC},
	ObjectToAddress:    {Name: "object_to_address", Args: args(ArgObject), Shape: ShapeValue, Lock: LockGC},
	FFIGetaddr:         {Name: "ffi_getaddr", Args: args(ArgString), Shape: ShapeStatus, Lock: LockGC},
	SRO:                {Name: "sro", Args: args(ArgInt32, ArgInt32), Shape: ShapeValue, Lock: LockGC},
	SysFeature:         {Name: "sys_feature", Args: args(ArgString), Shape: ShapeStatus},
	PeekBytes:          {Name: "peek_bytes", Args: args(ArgAddress, ArgCount), Shape: ShapeValue, Lock: LockGC},
	PokeBytes:          {Name: "poke_bytes", Args: args(ArgAddress, ArgBytes), Shape: ShapeUnspecified, Lock: LockGC},
	SegmentCodeAddress: {Name: "segment_code_address", Args: args(ArgObject, ArgInt32), Shape: ShapeValue, Lock: LockGC},
	StatsDumpStdout:    {Name: "stats_dump_stdout", Shape: ShapeUnspecified, Lock: LockStats},
	Chdir:              {Name: "chdir", Args: args(ArgString), Shape: ShapeStatus, Lock: LockProcess},
	Cwd:                {Name: "cwd", Shape: ShapeStatus, Lock: LockProcess},
}

var globalTable = [globalEnd - globalBase]Signature{
	SysGlobal - globalBase: {Name: "sysglobal", Family: FamilyGlobal, Args: args(ArgString, ArgAny), Shape: ShapeStatus, Lock: LockGlobals},
}
