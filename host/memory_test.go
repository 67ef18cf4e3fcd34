package host

import (
	"context"
	"syscall"
	"testing"

	"github.com/wippyai/systrap"
	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/heap"
	"github.com/wippyai/systrap/value"
)

func TestPinPeekPoke(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)
	id, err := h.Heap().AllocBytes([]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}

	_, err = h.ObjectToAddress(ctx, call.ObjectToAddress{Object: id})
	if e, ok := errors.From(err); !ok || e.Kind != errors.KindPermissionDenied {
		t.Fatalf("address of unpinned object: %v", err)
	}

	mustOK(t)(h.MakeNonrelocatable(ctx, call.MakeNonrelocatable{Object: id}))
	r := mustOK(t)(h.ObjectToAddress(ctx, call.ObjectToAddress{Object: id}))
	addr := r.Values[0].(systrap.Address)

	mustOK(t)(h.PokeBytes(ctx, call.PokeBytes{Addr: addr + 1, Data: []byte{9, 9}}))
	r = mustOK(t)(h.PeekBytes(ctx, call.PeekBytes{Addr: addr, Count: 4}))
	if got := r.Values[0].([]byte); string(got) != string([]byte{1, 9, 9, 4}) {
		t.Fatalf("peek = %v", got)
	}

	_, err = h.PeekBytes(ctx, call.PeekBytes{Addr: addr + 2, Count: 8})
	if e, ok := errors.From(err); !ok || e.Kind != errors.KindOutOfRange {
		t.Fatalf("peek past payload: %v", err)
	}
}

func TestSegmentCodeAddress(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)
	code, err := h.Heap().AllocCode(make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	base := mustOK(t)(h.SegmentCodeAddress(ctx, call.SegmentCodeAddress{Code: code, Offset: 0})).Values[0].(systrap.Address)
	r := mustOK(t)(h.SegmentCodeAddress(ctx, call.SegmentCodeAddress{Code: code, Offset: 16}))
	if r.Values[0].(systrap.Address) != base+16 {
		t.Fatalf("offset address = %v, base %v", r.Values[0], base)
	}
	if _, err := h.SegmentCodeAddress(ctx, call.SegmentCodeAddress{Code: code, Offset: 33}); err == nil {
		t.Fatal("offset past end accepted")
	}
	mustOK(t)(h.IFlush(ctx, call.IFlush{Code: code}))
}

func TestFFIGetaddr(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)
	if _, err := h.Heap().RegisterSymbol("apply-hook", []byte{0xC3}); err != nil {
		t.Fatal(err)
	}
	r := mustOK(t)(h.FFIGetaddr(ctx, call.FFIGetaddr{Name: "apply-hook"}))
	if r.Values[0].(systrap.Address) < heap.BaseAddress {
		t.Fatalf("address %v below arena", r.Values[0])
	}
	r, _ = h.FFIGetaddr(ctx, call.FFIGetaddr{Name: "missing"})
	if r.Errno != syscall.ENOENT {
		t.Fatalf("missing symbol: %v", r.Errno)
	}
}

func TestSRO(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)
	for _, s := range []string{"a", "b", "c"} {
		if _, err := h.Heap().AllocString(s); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := h.Heap().AllocFlonum(1.5); err != nil {
		t.Fatal(err)
	}

	r := mustOK(t)(h.SRO(ctx, call.SRO{Kind: int32(heap.KindString), Limit: -1}))
	if n := len(r.Values[0].([]value.Value)); n != 3 {
		t.Fatalf("%d strings, want 3", n)
	}
	r = mustOK(t)(h.SRO(ctx, call.SRO{Kind: int32(heap.KindString), Limit: 2}))
	if n := len(r.Values[0].([]value.Value)); n != 2 {
		t.Fatalf("limited to %d, want 2", n)
	}
	r = mustOK(t)(h.SRO(ctx, call.SRO{Kind: -1, Limit: -1}))
	if n := len(r.Values[0].([]value.Value)); n != 4 {
		t.Fatalf("%d objects, want 4", n)
	}
	if _, err := h.SRO(ctx, call.SRO{Kind: 42, Limit: -1}); err == nil {
		t.Fatal("unknown kind accepted")
	}
}
