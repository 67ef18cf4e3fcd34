package heap

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/wippyai/systrap"
	"github.com/wippyai/systrap/errors"
)

func pinnedBytes(t *testing.T, h *Heap, b []byte) (ObjectID, systrap.Address) {
	t.Helper()
	id, err := h.AllocBytes(b)
	if err != nil {
		t.Fatalf("AllocBytes: %v", err)
	}
	if err := h.Pin(id); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	addr, err := h.Address(id)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	return id, addr
}

func wantKind(t *testing.T, err error, kind errors.Kind) {
	t.Helper()
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != kind {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

func TestUnsafeReadWrite(t *testing.T) {
	h := newTestHeap(t)
	_, addr := pinnedBytes(t, h, make([]byte, 16))
	mem := h.Unsafe()

	if err := mem.Write(addr+4, []byte{0xDE, 0xAD}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := mem.Read(addr+3, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, []byte{0, 0xDE, 0xAD, 0}) {
		t.Fatalf("Read = %x", got)
	}

	if err := mem.WriteU64(addr+8, 0x1122334455667788); err != nil {
		t.Fatalf("WriteU64: %v", err)
	}
	if v, err := mem.ReadU64(addr + 8); err != nil || v != 0x1122334455667788 {
		t.Fatalf("ReadU64 = %#x, %v", v, err)
	}
	_, err = mem.ReadU64(addr + 4)
	wantKind(t, err, errors.KindMisaligned)

	start, n, ok := mem.Region(addr + 5)
	if !ok || start != addr || n != 16 {
		t.Fatalf("Region = %#x, %d, %v", start, n, ok)
	}
}

func TestUnsafeBounds(t *testing.T) {
	h := newTestHeap(t)
	_, addr := pinnedBytes(t, h, make([]byte, 16))
	unpinned, _ := h.AllocBytes(make([]byte, 16))
	mem := h.Unsafe()

	tests := []struct {
		name string
		addr systrap.Address
		n    uint32
	}{
		{"below arena", 0x100, 1},
		{"header", addr - 4, 4},
		{"past payload", addr + 12, 8},
		{"guard", addr + 16, 1},
		{"far away", 0xFFFFFFFF0000, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mem.Read(tt.addr, tt.n)
			wantKind(t, err, errors.KindOutOfRange)
		})
	}

	// The payload of an unpinned object is not addressable either.
	h.mu.Lock()
	ua := BaseAddress + systrap.Address(h.byID[unpinned].payloadOff())
	h.mu.Unlock()
	_, err := mem.Read(ua, 1)
	wantKind(t, err, errors.KindOutOfRange)
}

func TestUnsafeRejectedWriteLeavesMemoryUntouched(t *testing.T) {
	h := newTestHeap(t)
	id, addr := pinnedBytes(t, h, []byte("01234567"))
	mem := h.Unsafe()

	err := mem.Write(addr+4, []byte("XXXXXXXXXXXX"))
	wantKind(t, err, errors.KindOutOfRange)

	b, _ := h.Bytes(id)
	if string(b) != "01234567" {
		t.Fatalf("payload changed: %q", b)
	}
	if err := h.Verify(); err != nil {
		t.Fatalf("guards damaged by rejected write: %v", err)
	}
}

func TestUnsafeDetectsDamagedGuard(t *testing.T) {
	h := newTestHeap(t)
	id, addr := pinnedBytes(t, h, make([]byte, 8))

	h.mu.Lock()
	o := h.byID[id]
	h.arena[o.guardOff()+3] = 0
	h.mu.Unlock()

	_, err := h.Unsafe().Read(addr, 1)
	wantKind(t, err, errors.KindCorrupt)
	wantKind(t, h.Verify(), errors.KindCorrupt)
}

func TestUnsafeWriteDirtiesCode(t *testing.T) {
	h := newTestHeap(t)
	id, _ := h.AllocCode(make([]byte, 8))
	h.Flush(id)
	addr, _ := h.Address(id)

	if err := h.Unsafe().Write(addr, []byte{1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !h.Dirty(id) {
		t.Fatal("write into code should set dirty")
	}
}
