package host

import (
	"context"
	"syscall"

	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/heap"
	"github.com/wippyai/systrap/result"
	"github.com/wippyai/systrap/value"
)

// MakeNonrelocatable pins an object in place and returns it.
func (h *Host) MakeNonrelocatable(_ context.Context, c call.MakeNonrelocatable) (result.Result, error) {
	if err := h.heap.Pin(c.Object); err != nil {
		return result.Result{}, err
	}
	return result.Value(c.Object), nil
}

// ObjectToAddress returns the payload address of a pinned object.
func (h *Host) ObjectToAddress(_ context.Context, c call.ObjectToAddress) (result.Result, error) {
	addr, err := h.heap.Address(c.Object)
	if err != nil {
		return result.Result{}, err
	}
	return result.Value(addr), nil
}

// FFIGetaddr resolves a runtime symbol.
func (h *Host) FFIGetaddr(_ context.Context, c call.FFIGetaddr) (result.Result, error) {
	addr, err := h.heap.Symbol(c.Name)
	if err != nil {
		return result.Fail(syscall.ENOENT), nil
	}
	return result.Ok(addr), nil
}

// SRO lists live objects of one kind as a vector.
func (h *Host) SRO(_ context.Context, c call.SRO) (result.Result, error) {
	var kind heap.Kind
	if c.Kind != -1 {
		kind = heap.Kind(c.Kind)
		if c.Kind < 0 || !kind.Valid() {
			return result.Result{}, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
				Op("sro").
				Errno(syscall.EINVAL).
				Detail("unknown object kind %d", c.Kind).
				Build()
		}
	}
	ids := h.heap.Objects(kind, int(c.Limit))
	vals := make([]value.Value, len(ids))
	for i, id := range ids {
		vals[i] = value.FromObject(uint64(id))
	}
	return result.Value(vals), nil
}

// PeekBytes copies count bytes out of a pinned payload.
func (h *Host) PeekBytes(_ context.Context, c call.PeekBytes) (result.Result, error) {
	b, err := h.mem.Read(c.Addr, uint32(c.Count))
	if err != nil {
		return result.Result{}, err
	}
	return result.Value(b), nil
}

// PokeBytes copies bytes into a pinned payload.
func (h *Host) PokeBytes(_ context.Context, c call.PokeBytes) (result.Result, error) {
	if err := h.mem.Write(c.Addr, c.Data); err != nil {
		return result.Result{}, err
	}
	return result.Unspecified(), nil
}

// SegmentCodeAddress returns the address offset bytes into a code object.
func (h *Host) SegmentCodeAddress(_ context.Context, c call.SegmentCodeAddress) (result.Result, error) {
	addr, err := h.heap.CodeAddress(c.Code, int(c.Offset))
	if err != nil {
		return result.Result{}, err
	}
	return result.Value(addr), nil
}
