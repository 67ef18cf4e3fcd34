// Package call defines the typed trap requests. Each opcode has exactly one
// request struct, and Call is sealed so the set is closed: a handler switch
// over Call covers every trap the table defines.
package call

import (
	"github.com/wippyai/systrap"
	"github.com/wippyai/systrap/heap"
	"github.com/wippyai/systrap/opcode"
	"github.com/wippyai/systrap/resource"
	"github.com/wippyai/systrap/value"
)

// Call is a typed trap request.
type Call interface {
	Opcode() opcode.Opcode
	sealed()
}

// OpenFlags are the portable open flag bits. They are not host O_* values.
type OpenFlags int32

const (
	OpenRead OpenFlags = 1 << iota
	OpenWrite
	OpenAppend
	OpenCreate
	OpenTruncate
	OpenExclusive

	openAll = OpenRead | OpenWrite | OpenAppend | OpenCreate | OpenTruncate | OpenExclusive
)

// Valid reports whether f uses only known bits.
func (f OpenFlags) Valid() bool {
	return f&^openAll == 0
}

// GC kinds.
const (
	GCMinor int32 = 0
	GCMajor int32 = 1
)

// gcctl operations.
const (
	GCCtlHostPercent     int32 = 0
	GCCtlHostMemoryLimit int32 = 1
	GCCtlAutoCollect     int32 = 2
	GCCtlArenaMaxBytes   int32 = 3
)

type (
	Open struct {
		Path  string
		Flags OpenFlags
	}
	Unlink struct{ Path string }
	Close  struct{ File resource.Handle }
	Read   struct {
		File  resource.Handle
		Count int32
	}
	Write struct {
		File resource.Handle
		Data []byte
	}
	GetResourceUsage struct{}
	DumpHeap         struct {
		Path  string
		Entry string
	}
	Exit   struct{ Code int32 }
	Mtime  struct{ Path string }
	Access struct {
		Path string
		Mode int32
	}
	Rename struct {
		From string
		To   string
	}
	PollInput struct{ File resource.Handle }
	Getenv    struct{ Name string }
	GC        struct{ Kind int32 }
)

type (
	FlonumLog   struct{ X float64 }
	FlonumExp   struct{ X float64 }
	FlonumSin   struct{ X float64 }
	FlonumCos   struct{ X float64 }
	FlonumTan   struct{ X float64 }
	FlonumAsin  struct{ X float64 }
	FlonumAcos  struct{ X float64 }
	FlonumAtan  struct{ X float64 }
	FlonumAtan2 struct{ Y, X float64 }
	FlonumSqrt  struct{ X float64 }
	FlonumSinh  struct{ X float64 }
	FlonumCosh  struct{ X float64 }
)

type (
	StatsDumpOn  struct{ Path string }
	StatsDumpOff struct{}
	IFlush       struct{ Code heap.ObjectID }
	GCCtl        struct {
		Op  int32
		Arg int64
	}
	BlockSignals struct{ Block bool }
	System       struct{ Command string }
)

type (
	FFIApply struct {
		Symbol resource.Handle
		Args   []byte // packed little-endian u64 words
	}
	FFIDlopen struct{ Path string }
	FFIDlsym  struct {
		Library resource.Handle
		Name    string
	}
)

type (
	MakeNonrelocatable struct{ Object heap.ObjectID }
	ObjectToAddress    struct{ Object heap.ObjectID }
	FFIGetaddr         struct{ Name string }
	SRO                struct {
		Kind  int32 // -1 for every kind
		Limit int32 // -1 for no limit
	}
	SysFeature struct{ Name string }
	PeekBytes  struct {
		Addr  systrap.Address
		Count int32
	}
	PokeBytes struct {
		Addr systrap.Address
		Data []byte
	}
	SegmentCodeAddress struct {
		Code   heap.ObjectID
		Offset int32
	}
	StatsDumpStdout struct{}
	Chdir           struct{ Path string }
	Cwd             struct{}
)

// SysGlobal reads a global slot when Value is value.Unspecified, otherwise
// writes it.
type SysGlobal struct {
	Name  string
	Value value.Value
}

func (Open) Opcode() opcode.Opcode               { return opcode.Open }
func (Unlink) Opcode() opcode.Opcode             { return opcode.Unlink }
func (Close) Opcode() opcode.Opcode              { return opcode.Close }
func (Read) Opcode() opcode.Opcode               { return opcode.Read }
func (Write) Opcode() opcode.Opcode              { return opcode.Write }
func (GetResourceUsage) Opcode() opcode.Opcode   { return opcode.GetResourceUsage }
func (DumpHeap) Opcode() opcode.Opcode           { return opcode.DumpHeap }
func (Exit) Opcode() opcode.Opcode               { return opcode.Exit }
func (Mtime) Opcode() opcode.Opcode              { return opcode.Mtime }
func (Access) Opcode() opcode.Opcode             { return opcode.Access }
func (Rename) Opcode() opcode.Opcode             { return opcode.Rename }
func (PollInput) Opcode() opcode.Opcode          { return opcode.PollInput }
func (Getenv) Opcode() opcode.Opcode             { return opcode.Getenv }
func (GC) Opcode() opcode.Opcode                 { return opcode.GC }
func (FlonumLog) Opcode() opcode.Opcode          { return opcode.FlonumLog }
func (FlonumExp) Opcode() opcode.Opcode          { return opcode.FlonumExp }
func (FlonumSin) Opcode() opcode.Opcode          { return opcode.FlonumSin }
func (FlonumCos) Opcode() opcode.Opcode          { return opcode.FlonumCos }
func (FlonumTan) Opcode() opcode.Opcode          { return opcode.FlonumTan }
func (FlonumAsin) Opcode() opcode.Opcode         { return opcode.FlonumAsin }
func (FlonumAcos) Opcode() opcode.Opcode         { return opcode.FlonumAcos }
func (FlonumAtan) Opcode() opcode.Opcode         { return opcode.FlonumAtan }
func (FlonumAtan2) Opcode() opcode.Opcode        { return opcode.FlonumAtan2 }
func (FlonumSqrt) Opcode() opcode.Opcode         { return opcode.FlonumSqrt }
func (StatsDumpOn) Opcode() opcode.Opcode        { return opcode.StatsDumpOn }
func (StatsDumpOff) Opcode() opcode.Opcode       { return opcode.StatsDumpOff }
func (IFlush) Opcode() opcode.Opcode             { return opcode.IFlush }
func (GCCtl) Opcode() opcode.Opcode              { return opcode.GCCtl }
func (BlockSignals) Opcode() opcode.Opcode       { return opcode.BlockSignals }
func (FlonumSinh) Opcode() opcode.Opcode         { return opcode.FlonumSinh }
func (FlonumCosh) Opcode() opcode.Opcode         { return opcode.FlonumCosh }
func (System) Opcode() opcode.Opcode             { return opcode.System }
func (FFIApply) Opcode() opcode.Opcode           { return opcode.FFIApply }
func (FFIDlopen) Opcode() opcode.Opcode          { return opcode.FFIDlopen }
func (FFIDlsym) Opcode() opcode.Opcode           { return opcode.FFIDlsym }
func (MakeNonrelocatable) Opcode() opcode.Opcode { return opcode.MakeNonrelocatable }
func (ObjectToAddress) Opcode() opcode.Opcode    { return opcode.ObjectToAddress }
func (FFIGetaddr) Opcode() opcode.Opcode         { return opcode.FFIGetaddr }
func (SRO) Opcode() opcode.Opcode                { return opcode.SRO }
func (SysFeature) Opcode() opcode.Opcode         { return opcode.SysFeature }
func (PeekBytes) Opcode() opcode.Opcode          { return opcode.PeekBytes }
func (PokeBytes) Opcode() opcode.Opcode          { return opcode.PokeBytes }
func (SegmentCodeAddress) Opcode() opcode.Opcode { return opcode.SegmentCodeAddress }
func (StatsDumpStdout) Opcode() opcode.Opcode    { return opcode.StatsDumpStdout }
func (Chdir) Opcode() opcode.Opcode              { return opcode.Chdir }
func (Cwd) Opcode() opcode.Opcode                { return opcode.Cwd }
func (SysGlobal) Opcode() opcode.Opcode          { return opcode.SysGlobal }

func (Open) sealed()               {}
func (Unlink) sealed()             {}
func (Close) sealed()              {}
func (Read) sealed()               {}
func (Write) sealed()              {}
func (GetResourceUsage) sealed()   {}
func (DumpHeap) sealed()           {}
func (Exit) sealed()               {}
func (Mtime) sealed()              {}
func (Access) sealed()             {}
func (Rename) sealed()             {}
func (PollInput) sealed()          {}
func (Getenv) sealed()             {}
func (GC) sealed()                 {}
func (FlonumLog) sealed()          {}
func (FlonumExp) sealed()          {}
func (FlonumSin) sealed()          {}
func (FlonumCos) sealed()          {}
func (FlonumTan) sealed()          {}
func (FlonumAsin) sealed()         {}
func (FlonumAcos) sealed()         {}
func (FlonumAtan) sealed()         {}
func (FlonumAtan2) sealed()        {}
func (FlonumSqrt) sealed()         {}
func (StatsDumpOn) sealed()        {}
func (StatsDumpOff) sealed()       {}
func (IFlush) sealed()             {}
func (GCCtl) sealed()              {}
func (BlockSignals) sealed()       {}
func (FlonumSinh) sealed()         {}
func (FlonumCosh) sealed()         {}
func (System) sealed()             {}
func (FFIApply) sealed()           {}
func (FFIDlopen) sealed()          {}
func (FFIDlsym) sealed()           {}
func (MakeNonrelocatable) sealed() {}
func (ObjectToAddress) sealed()    {}
func (FFIGetaddr) sealed()         {}
func (SRO) sealed()                {}
func (SysFeature) sealed()         {}
func (PeekBytes) sealed()          {}
func (PokeBytes) sealed()          {}
func (SegmentCodeAddress) sealed() {}
func (StatsDumpStdout) sealed()    {}
func (Chdir) sealed()              {}
func (Cwd) sealed()                {}
func (SysGlobal) sealed()          {}
