package host

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/config"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/resource"
	"github.com/wippyai/systrap/result"
)

// addModule exports add(i32, i32) i32 and trap(), which hits unreachable.
var addModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type section: (i32 i32) -> i32, () -> ()
	0x01, 0x0a, 0x02, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, 0x60, 0x00, 0x00,
	// function section
	0x03, 0x03, 0x02, 0x00, 0x01,
	// export section
	0x07, 0x0e, 0x02,
	0x03, 'a', 'd', 'd', 0x00, 0x00,
	0x04, 't', 'r', 'a', 'p', 0x00, 0x01,
	// code section
	0x0a, 0x0d, 0x02,
	0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
	0x03, 0x00, 0x00, 0x0b,
}

func writeModule(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "add.wasm")
	if err := os.WriteFile(path, addModule, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func packWords(ws ...uint64) []byte {
	b := make([]byte, 8*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint64(b[8*i:], w)
	}
	return b
}

func dlsym(t *testing.T, h *testHost, lib resource.Handle, name string) resource.Handle {
	t.Helper()
	r := mustOK(t)(h.FFIDlsym(context.Background(), call.FFIDlsym{Library: lib, Name: name}))
	return r.Values[0].(result.Handle).Handle
}

func TestFFIApply(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)
	path := writeModule(t, t.TempDir())

	r := mustOK(t)(h.FFIDlopen(ctx, call.FFIDlopen{Path: path}))
	lib := r.Values[0].(result.Handle).Handle
	add := dlsym(t, h, lib, "add")

	r = mustOK(t)(h.FFIApply(ctx, call.FFIApply{Symbol: add, Args: packWords(2, 40)}))
	out := r.Values[0].([]byte)
	if len(out) != 8 || binary.LittleEndian.Uint64(out) != 42 {
		t.Fatalf("add(2, 40) = %v", out)
	}

	_, err := h.FFIApply(ctx, call.FFIApply{Symbol: add, Args: packWords(1)})
	if e, ok := errors.From(err); !ok || e.Kind != errors.KindOutOfRange {
		t.Fatalf("short args: %v", err)
	}

	trap := dlsym(t, h, lib, "trap")
	r, err = h.FFIApply(ctx, call.FFIApply{Symbol: trap})
	if err != nil || r.Errno != syscall.EFAULT {
		t.Fatalf("trap: %v, %v", r.Errno, err)
	}

	r, _ = h.FFIDlsym(ctx, call.FFIDlsym{Library: lib, Name: "sub"})
	if r.Errno != syscall.ENOENT {
		t.Fatalf("missing export: %v", r.Errno)
	}
}

func TestFFIStaleHandles(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)
	path := writeModule(t, t.TempDir())
	lib := mustOK(t)(h.FFIDlopen(ctx, call.FFIDlopen{Path: path})).Values[0].(result.Handle).Handle
	add := dlsym(t, h, lib, "add")

	if _, ok := h.ffi.libs.Remove(lib); !ok {
		t.Fatal("library handle not live")
	}
	_, err := h.FFIDlsym(ctx, call.FFIDlsym{Library: lib, Name: "add"})
	if e, ok := errors.From(err); !ok || e.Kind != errors.KindPermissionDenied || e.Phase != errors.PhaseFFI {
		t.Fatalf("dlsym on closed library: %v", err)
	}
	_, err = h.FFIApply(ctx, call.FFIApply{Symbol: add, Args: packWords(1, 2)})
	if e, ok := errors.From(err); !ok || e.Kind != errors.KindPermissionDenied {
		t.Fatalf("apply after library closed: %v", err)
	}

	_, err = h.FFIApply(ctx, call.FFIApply{Symbol: lib})
	if e, ok := errors.From(err); !ok || e.Kind != errors.KindPermissionDenied {
		t.Fatalf("library handle used as symbol: %v", err)
	}
}

func TestFFIDlopenErrors(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)
	dir := t.TempDir()

	r, _ := h.FFIDlopen(ctx, call.FFIDlopen{Path: filepath.Join(dir, "none.wasm")})
	if r.Errno != syscall.ENOENT {
		t.Errorf("missing file: %v", r.Errno)
	}

	bad := filepath.Join(dir, "bad.wasm")
	if err := os.WriteFile(bad, []byte("not wasm"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, _ = h.FFIDlopen(ctx, call.FFIDlopen{Path: bad})
	if r.Errno != syscall.ENOEXEC {
		t.Errorf("invalid module: %v", r.Errno)
	}

	_, e := h.ffi.open(ctx, bad)
	if e == nil || e.Kind != errors.KindNative || e.Phase != errors.PhaseFFI || e.Cause == nil {
		t.Errorf("open error = %#v, want a native ffi error with its cause", e)
	}
}

func TestFFISearchPath(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir)
	h := newTestHost(t, func(c *config.Config) {
		c.FFI.SearchPath = []string{t.TempDir(), dir}
	})
	mustOK(t)(h.FFIDlopen(context.Background(), call.FFIDlopen{Path: "add.wasm"}))
}

func TestFFIDisabled(t *testing.T) {
	h := newTestHost(t, func(c *config.Config) { c.FFI.Enabled = false })
	r, err := h.FFIDlopen(context.Background(), call.FFIDlopen{Path: "x.wasm"})
	if err != nil || r.Errno != syscall.ENOSYS {
		t.Fatalf("disabled ffi: %v, %v", r.Errno, err)
	}
}
