package heap

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/systrap"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/value"
)

const (
	DefaultInitialBytes = 1 << 20
	DefaultMaxBytes     = 64 << 20
)

// Policy selects what a major collection does.
type Policy uint8

const (
	// PolicyCompacting slides unpinned objects down on a major collection.
	PolicyCompacting Policy = iota
	// PolicyNonMoving never moves objects; major behaves like minor.
	PolicyNonMoving
)

func (p Policy) String() string {
	switch p {
	case PolicyCompacting:
		return "compacting"
	case PolicyNonMoving:
		return "non-moving"
	}
	return fmt.Sprintf("policy-%d", uint8(p))
}

// ParsePolicy parses a policy name as written in configuration.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "compacting":
		return PolicyCompacting, nil
	case "non-moving":
		return PolicyNonMoving, nil
	}
	return 0, fmt.Errorf("unknown gc policy %q", s)
}

// Options configures a new heap.
type Options struct {
	InitialBytes int
	MaxBytes     int
	GuardBytes   int
	AutoCollect  bool
	Policy       Policy
}

func (o Options) normalize() Options {
	if o.GuardBytes <= 0 {
		o.GuardBytes = DefaultGuardBytes
	}
	o.GuardBytes = align(o.GuardBytes)
	if o.InitialBytes <= 0 {
		o.InitialBytes = DefaultInitialBytes
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.InitialBytes < o.GuardBytes {
		o.InitialBytes = o.GuardBytes
	}
	if o.MaxBytes < o.InitialBytes {
		o.MaxBytes = o.InitialBytes
	}
	return o
}

// Stats is a snapshot of arena counters.
type Stats struct {
	Collections      uint64
	MinorCollections uint64
	MajorCollections uint64
	AllocatedBytes   uint64
	ReclaimedBytes   uint64
	MovedObjects     uint64
	LiveObjects      int
	LiveBytes        int
	PinnedObjects    int
	ArenaBytes       int
	MaxBytes         int
	LastPause        time.Duration
	TotalPause       time.Duration
}

// Heap is a managed heap arena. All methods are safe for concurrent use.
type Heap struct {
	mu      sync.Mutex
	arena   []byte
	top     int
	guard   int
	max     int
	auto    bool
	policy  Policy
	objs    []*object // address order
	byID    map[ObjectID]*object
	nextID  ObjectID
	symbols map[string]ObjectID
	stats   Stats
	onGC    func(CollectKind, Stats)
}

// New creates an empty heap.
func New(opts Options) *Heap {
	opts = opts.normalize()
	h := &Heap{
		arena:   make([]byte, opts.InitialBytes),
		guard:   opts.GuardBytes,
		max:     opts.MaxBytes,
		auto:    opts.AutoCollect,
		policy:  opts.Policy,
		byID:    make(map[ObjectID]*object),
		symbols: make(map[string]ObjectID),
	}
	h.stampGuard(0)
	h.top = h.guard
	return h
}

func (h *Heap) stampGuard(off int) {
	g := h.arena[off : off+h.guard]
	for i := range g {
		g[i] = GuardByte
	}
}

func (h *Heap) guardIntact(off int) bool {
	for _, b := range h.arena[off : off+h.guard] {
		if b != GuardByte {
			return false
		}
	}
	return true
}

// Alloc copies payload into a new object of the given kind.
func (h *Heap) Alloc(kind Kind, payload []byte) (ObjectID, error) {
	if !kind.Valid() {
		return 0, errors.InvalidInput(errors.PhaseHeap, fmt.Sprintf("unknown object kind %d", kind))
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.allocLocked(kind, payload)
	if err != nil {
		return 0, err
	}
	return o.id, nil
}

func (h *Heap) allocLocked(kind Kind, payload []byte) (*object, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, errors.InvalidInput(errors.PhaseHeap, "payload too large")
	}
	o := &object{kind: kind, length: len(payload)}
	need := o.span(h.guard)
	if err := h.ensureLocked(need); err != nil {
		return nil, err
	}

	h.nextID++
	o.id = h.nextID
	o.off = h.top
	if kind == KindCode {
		o.pinned = true
		o.dirty = true
	}

	p := o.payloadOff()
	copy(h.arena[p:], payload)
	clear(h.arena[p+o.length : o.guardOff()])
	h.stampGuard(o.guardOff())
	o.writeHeader(h.arena)

	h.top += need
	h.objs = append(h.objs, o)
	h.byID[o.id] = o
	h.stats.AllocatedBytes += uint64(need)
	return o, nil
}

// ensureLocked makes room for need bytes at top, collecting or growing.
func (h *Heap) ensureLocked(need int) error {
	if h.top+need <= len(h.arena) {
		return nil
	}
	if h.auto {
		h.collectLocked(CollectMajor)
		if h.top+need <= len(h.arena) {
			return nil
		}
	}
	if h.top+need > h.max {
		return errors.New(errors.PhaseHeap, errors.KindExhausted).
			Errno(syscall.ENOMEM).
			Detail("need %d bytes, arena at %d of %d", need, h.top, h.max).
			Build()
	}
	size := len(h.arena) * 2
	for size < h.top+need {
		size *= 2
	}
	if size > h.max {
		size = h.max
	}
	grown := make([]byte, size)
	copy(grown, h.arena[:h.top])
	Logger().Debug("heap grown", zap.Int("from", len(h.arena)), zap.Int("to", size))
	h.arena = grown
	return nil
}

// AllocString allocates a string object.
func (h *Heap) AllocString(s string) (ObjectID, error) {
	return h.Alloc(KindString, []byte(s))
}

// AllocBytes allocates a bytevector.
func (h *Heap) AllocBytes(b []byte) (ObjectID, error) {
	return h.Alloc(KindBytevector, b)
}

// AllocVector allocates a vector of managed values.
func (h *Heap) AllocVector(vals []value.Value) (ObjectID, error) {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(v))
	}
	return h.Alloc(KindVector, buf)
}

// AllocFlonum allocates a boxed flonum.
func (h *Heap) AllocFlonum(f float64) (ObjectID, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	return h.Alloc(KindFlonum, buf[:])
}

// AllocCode allocates a code object. Code objects are pinned from birth and
// start dirty until flushed.
func (h *Heap) AllocCode(code []byte) (ObjectID, error) {
	return h.Alloc(KindCode, code)
}

func notLive(id ObjectID) *errors.Error {
	return errors.New(errors.PhaseHeap, errors.KindNotFound).
		Value(uint64(id)).
		Detail("object %d is not live", id).
		Build()
}

func (h *Heap) lookupLocked(id ObjectID) (*object, error) {
	o, ok := h.byID[id]
	if !ok || o.released {
		return nil, notLive(id)
	}
	return o, nil
}

// Live reports whether id names an allocated, unreleased object.
func (h *Heap) Live(id ObjectID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.lookupLocked(id)
	return err == nil
}

// Kind returns the kind of a live object.
func (h *Heap) Kind(id ObjectID) (Kind, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookupLocked(id)
	if err != nil {
		return 0, false
	}
	return o.kind, true
}

// Payload returns the kind and a copy of the payload of a live object.
func (h *Heap) Payload(id ObjectID) (Kind, []byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookupLocked(id)
	if err != nil {
		return 0, nil, err
	}
	p := o.payloadOff()
	out := make([]byte, o.length)
	copy(out, h.arena[p:p+o.length])
	return o.kind, out, nil
}

func (h *Heap) payloadOf(id ObjectID, want Kind) ([]byte, error) {
	kind, b, err := h.Payload(id)
	if err != nil {
		return nil, err
	}
	if kind != want {
		return nil, errors.New(errors.PhaseHeap, errors.KindTypeMismatch).
			Expected(want.String()).
			Actual(kind.String()).
			Build()
	}
	return b, nil
}

// String returns the contents of a string object.
func (h *Heap) String(id ObjectID) (string, error) {
	b, err := h.payloadOf(id, KindString)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Bytes returns a copy of a bytevector.
func (h *Heap) Bytes(id ObjectID) ([]byte, error) {
	return h.payloadOf(id, KindBytevector)
}

// Vector returns the elements of a vector object.
func (h *Heap) Vector(id ObjectID) ([]value.Value, error) {
	b, err := h.payloadOf(id, KindVector)
	if err != nil {
		return nil, err
	}
	vals := make([]value.Value, len(b)/8)
	for i := range vals {
		vals[i] = value.Value(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return vals, nil
}

// Flonum returns the value of a boxed flonum.
func (h *Heap) Flonum(id ObjectID) (float64, error) {
	b, err := h.payloadOf(id, KindFlonum)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// Info describes a live object.
func (h *Heap) Info(id ObjectID) (Info, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookupLocked(id)
	if err != nil {
		return Info{}, err
	}
	return h.infoLocked(o), nil
}

func (h *Heap) infoLocked(o *object) Info {
	info := Info{ID: o.id, Kind: o.kind, Length: o.length, Pinned: o.pinned}
	if o.pinned {
		info.Address = BaseAddress + systrap.Address(o.payloadOff())
	}
	return info
}

// Pin makes an object non-relocatable. Pinning is idempotent.
func (h *Heap) Pin(id ObjectID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookupLocked(id)
	if err != nil {
		return err
	}
	if !o.pinned {
		o.pinned = true
		o.writeHeader(h.arena)
	}
	return nil
}

// Pinned reports whether a live object is pinned.
func (h *Heap) Pinned(id ObjectID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookupLocked(id)
	return err == nil && o.pinned
}

// Release marks an object unreachable. Its storage is reclaimed by the next
// collection and its id never resolves again.
func (h *Heap) Release(id ObjectID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookupLocked(id)
	if err != nil {
		return err
	}
	for name, sid := range h.symbols {
		if sid == id {
			delete(h.symbols, name)
		}
	}
	o.released = true
	o.writeHeader(h.arena)
	return nil
}

// Address returns the payload address of a pinned object.
func (h *Heap) Address(id ObjectID) (systrap.Address, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	if !o.pinned {
		return 0, errors.PermissionDenied(errors.PhaseMemory, fmt.Sprintf("object %d is not pinned", id))
	}
	return BaseAddress + systrap.Address(o.payloadOff()), nil
}

// CodeAddress returns the address offset bytes into a code object.
// offset may equal the code length.
func (h *Heap) CodeAddress(id ObjectID, offset int) (systrap.Address, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.codeLocked(id)
	if err != nil {
		return 0, err
	}
	if offset < 0 || offset > o.length {
		return 0, errors.OutOfRange(errors.PhaseMemory, uint64(BaseAddress)+uint64(o.payloadOff()), offset)
	}
	return BaseAddress + systrap.Address(o.payloadOff()+offset), nil
}

func (h *Heap) codeLocked(id ObjectID) (*object, error) {
	o, err := h.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if o.kind != KindCode {
		return nil, errors.New(errors.PhaseHeap, errors.KindTypeMismatch).
			Expected(KindCode.String()).
			Actual(o.kind.String()).
			Build()
	}
	return o, nil
}

// Flush validates a code object and clears its dirty bit. It reports
// whether the object was dirty.
func (h *Heap) Flush(id ObjectID) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.codeLocked(id)
	if err != nil {
		return false, err
	}
	if err := h.checkLocked(o); err != nil {
		return false, err
	}
	was := o.dirty
	o.dirty = false
	o.writeHeader(h.arena)
	return was, nil
}

// Dirty reports whether a code object was written since its last flush.
func (h *Heap) Dirty(id ObjectID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, err := h.codeLocked(id)
	return err == nil && o.dirty
}

// RegisterSymbol allocates a code object for a runtime symbol.
func (h *Heap) RegisterSymbol(name string, code []byte) (ObjectID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.symbols[name]; ok {
		return 0, errors.InvalidInput(errors.PhaseHeap, fmt.Sprintf("symbol %q already registered", name))
	}
	o, err := h.allocLocked(KindCode, code)
	if err != nil {
		return 0, err
	}
	o.dirty = false
	o.writeHeader(h.arena)
	h.symbols[name] = o.id
	return o.id, nil
}

// Symbol resolves a runtime symbol to its code address.
func (h *Heap) Symbol(name string) (systrap.Address, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.symbols[name]
	if !ok {
		return 0, errors.NotFound(errors.PhaseHeap, "symbol", name)
	}
	o, err := h.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	return BaseAddress + systrap.Address(o.payloadOff()), nil
}

// Symbols lists the registered runtime symbol names in order.
func (h *Heap) Symbols() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.symbols))
	for name := range h.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Objects lists live objects of kind in address order. A zero kind matches
// every kind; a negative limit means no limit.
func (h *Heap) Objects(kind Kind, limit int) []ObjectID {
	h.mu.Lock()
	defer h.mu.Unlock()
	var ids []ObjectID
	for _, o := range h.objs {
		if limit >= 0 && len(ids) >= limit {
			break
		}
		if o.released || (kind != 0 && o.kind != kind) {
			continue
		}
		ids = append(ids, o.id)
	}
	return ids
}

// checkLocked verifies the header and trailing guard of o.
func (h *Heap) checkLocked(o *object) error {
	if !o.checkHeader(h.arena) {
		return errors.Corrupt("object %d header at %#x damaged", o.id, uint64(BaseAddress)+uint64(o.off))
	}
	if !h.guardIntact(o.guardOff()) {
		return errors.Corrupt("object %d guard at %#x damaged", o.id, uint64(BaseAddress)+uint64(o.guardOff()))
	}
	return nil
}

// Verify checks the arena guard and every live object.
func (h *Heap) Verify() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.guardIntact(0) {
		return errors.Corrupt("arena guard at %#x damaged", uint64(BaseAddress))
	}
	for _, o := range h.objs {
		if o.released {
			continue
		}
		if err := h.checkLocked(o); err != nil {
			return err
		}
	}
	return nil
}

// SetAutoCollect toggles collect-before-grow and returns the previous setting.
func (h *Heap) SetAutoCollect(on bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.auto
	h.auto = on
	return prev
}

// SetMaxBytes changes the arena limit and returns the previous limit. The
// limit cannot drop below the bytes in use.
func (h *Heap) SetMaxBytes(n int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n < h.top {
		return h.max, errors.New(errors.PhaseHeap, errors.KindInvalidInput).
			Errno(syscall.EINVAL).
			Detail("limit %d below %d bytes in use", n, h.top).
			Build()
	}
	prev := h.max
	h.max = n
	return prev, nil
}

// Room returns the largest payload a single allocation could take right
// now without exceeding the arena limit. With auto-collect on it counts the
// space a major collection would recover, so an allocation of that size can
// still fail when pinned objects fragment the arena.
func (h *Heap) Room() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	free := h.max - h.top
	if h.auto {
		if c := h.max - h.guard - h.statsLocked().LiveBytes; c > free {
			free = c
		}
	}
	n := free - headerSize - h.guard
	if n <= 0 {
		return 0
	}
	return n &^ (alignment - 1)
}

// MaxBytes returns the arena limit.
func (h *Heap) MaxBytes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.max
}

// Policy returns the collection policy.
func (h *Heap) Policy() Policy {
	return h.policy
}

// OnCollect installs fn to run after every collection, including automatic
// ones. fn runs under the heap lock and must not call back into the heap.
func (h *Heap) OnCollect(fn func(CollectKind, Stats)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onGC = fn
}

// Stats returns a snapshot of the arena counters.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statsLocked()
}

func (h *Heap) statsLocked() Stats {
	s := h.stats
	s.LiveObjects, s.LiveBytes, s.PinnedObjects = 0, 0, 0
	for _, o := range h.objs {
		if o.released {
			continue
		}
		s.LiveObjects++
		s.LiveBytes += o.span(h.guard)
		if o.pinned {
			s.PinnedObjects++
		}
	}
	s.ArenaBytes = len(h.arena)
	s.MaxBytes = h.max
	return s
}
