package host

import (
	"context"
	"runtime"
	"syscall"
	"testing"

	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/config"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/heap"
	"github.com/wippyai/systrap/value"
)

func TestGetenv(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)
	t.Setenv("SYSTRAP_TEST_VAR", "on")

	r := mustOK(t)(h.Getenv(ctx, call.Getenv{Name: "SYSTRAP_TEST_VAR"}))
	if r.Values[0] != "on" {
		t.Fatalf("getenv = %v", r.Values[0])
	}
	r = mustOK(t)(h.Getenv(ctx, call.Getenv{Name: "SYSTRAP_TEST_UNSET_VAR"}))
	if r.Values[0] != false {
		t.Fatalf("unset getenv = %v, want false", r.Values[0])
	}
}

func TestSysFeature(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)

	tests := []struct {
		name string
		want any
	}{
		{"os", runtime.GOOS},
		{"arch", runtime.GOARCH},
		{"fixnum-bits", value.FixnumBits},
		{"ffi", true},
		{"gc-policy", "compacting"},
		{"version", Version},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustOK(t)(h.SysFeature(ctx, call.SysFeature{Name: tt.name}))
			if r.Values[0] != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, r.Values[0], tt.want)
			}
		})
	}

	for _, name := range FeatureNames {
		if _, ok := h.feature(name); !ok {
			t.Errorf("listed feature %q is not answered", name)
		}
	}

	r, err := h.SysFeature(ctx, call.SysFeature{Name: "warp-drive"})
	if err != nil || r.Errno != syscall.ENOSYS {
		t.Fatalf("unknown feature: %v, %v", r.Errno, err)
	}
}

func TestSysGlobal(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, func(c *config.Config) {
		c.Globals["banner"] = "hello"
	})

	r := mustOK(t)(h.SysGlobal(ctx, call.SysGlobal{Name: "banner", Value: value.Unspecified}))
	id := r.Values[0].(value.Value)
	if !id.IsObject() {
		t.Fatalf("banner = %v, want object", id)
	}
	s, err := h.Heap().String(heap.ObjectID(id.Object()))
	if err != nil || s != "hello" {
		t.Fatalf("banner string = %q, %v", s, err)
	}

	r = mustOK(t)(h.SysGlobal(ctx, call.SysGlobal{Name: "banner", Value: value.FromFixnum(9)}))
	if r.Values[0].(value.Value) != id {
		t.Fatalf("write returned %v, want previous value", r.Values[0])
	}
	r = mustOK(t)(h.SysGlobal(ctx, call.SysGlobal{Name: "banner", Value: value.Unspecified}))
	if r.Values[0].(value.Value) != value.FromFixnum(9) {
		t.Fatalf("after write = %v", r.Values[0])
	}

	r, _ = h.SysGlobal(ctx, call.SysGlobal{Name: "nope", Value: value.Unspecified})
	if r.Errno != syscall.ENOENT {
		t.Fatalf("unknown global: %v", r.Errno)
	}

	_, err = h.SysGlobal(ctx, call.SysGlobal{Name: "stdout", Value: value.True})
	if e, ok := errors.From(err); !ok || e.Kind != errors.KindPermissionDenied {
		t.Fatalf("write read-only: %v", err)
	}
	_, out, _ := h.Stdio()
	r = mustOK(t)(h.SysGlobal(ctx, call.SysGlobal{Name: "stdout", Value: value.Unspecified}))
	if r.Values[0].(value.Value) != out {
		t.Fatalf("stdout global = %v", r.Values[0])
	}
}

func TestReservedGlobalRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Globals["stdin"] = "x"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for reserved global")
	}
}
