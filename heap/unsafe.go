package heap

import (
	"encoding/binary"
	"sort"

	"github.com/wippyai/systrap"
	"github.com/wippyai/systrap/errors"
)

// memory is the raw view of the arena. Every access is confined to one live
// pinned payload and checks that object's header and guard first.
type memory struct {
	h *Heap
}

// Unsafe returns raw access to pinned payloads. Only the memory handlers
// should hold it.
func (h *Heap) Unsafe() systrap.UnsafeMemory {
	return memory{h: h}
}

// containingLocked returns the object whose payload starts at or before off.
func (h *Heap) containingLocked(off int) *object {
	i := sort.Search(len(h.objs), func(i int) bool {
		return h.objs[i].payloadOff() > off
	})
	if i == 0 {
		return nil
	}
	return h.objs[i-1]
}

// resolveLocked maps [addr, addr+n) to an arena offset inside one pinned
// payload. Nothing is read before the range and the guards check out.
func (h *Heap) resolveLocked(addr systrap.Address, n int) (*object, int, error) {
	end := uint64(addr) + uint64(n)
	if addr < BaseAddress || end < uint64(addr) || end > uint64(BaseAddress)+uint64(h.top) {
		return nil, 0, errors.OutOfRange(errors.PhaseMemory, uint64(addr), n)
	}
	off := int(addr - BaseAddress)
	o := h.containingLocked(off)
	if o == nil || o.released || !o.pinned || off+n > o.payloadOff()+o.length {
		return nil, 0, errors.OutOfRange(errors.PhaseMemory, uint64(addr), n)
	}
	if err := h.checkLocked(o); err != nil {
		return nil, 0, err
	}
	return o, off, nil
}

func (m memory) Region(addr systrap.Address) (systrap.Address, uint32, bool) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	o, _, err := m.h.resolveLocked(addr, 0)
	if err != nil {
		return 0, 0, false
	}
	return BaseAddress + systrap.Address(o.payloadOff()), uint32(o.length), true
}

func (m memory) Read(addr systrap.Address, length uint32) ([]byte, error) {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	_, off, err := m.h.resolveLocked(addr, int(length))
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.h.arena[off:])
	return out, nil
}

func (m memory) Write(addr systrap.Address, data []byte) error {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	o, off, err := m.h.resolveLocked(addr, len(data))
	if err != nil {
		return err
	}
	copy(m.h.arena[off:], data)
	if o.kind == KindCode && len(data) > 0 && !o.dirty {
		o.dirty = true
		o.writeHeader(m.h.arena)
	}
	return nil
}

func misaligned(addr systrap.Address) error {
	return errors.New(errors.PhaseMemory, errors.KindMisaligned).
		Value(uint64(addr)).
		Detail("address %#x is not 8-byte aligned", uint64(addr)).
		Build()
}

func (m memory) ReadU64(addr systrap.Address) (uint64, error) {
	if addr%8 != 0 {
		return 0, misaligned(addr)
	}
	b, err := m.Read(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m memory) WriteU64(addr systrap.Address, v uint64) error {
	if addr%8 != 0 {
		return misaligned(addr)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return m.Write(addr, buf[:])
}
