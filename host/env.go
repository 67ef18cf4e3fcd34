package host

import (
	"context"
	"encoding/binary"
	"os"
	"runtime"
	"sort"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/result"
	"github.com/wippyai/systrap/value"
)

// Getenv returns the variable as a string, or #f when it is unset.
func (h *Host) Getenv(_ context.Context, c call.Getenv) (result.Result, error) {
	v, ok := os.LookupEnv(c.Name)
	if !ok {
		return result.Value(false), nil
	}
	return result.Value(v), nil
}

func endianness() string {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], 1)
	if b[0] == 1 {
		return "little"
	}
	return "big"
}

// feature returns the value of a named host feature.
func (h *Host) feature(name string) (any, bool) {
	switch name {
	case "os":
		return runtime.GOOS, true
	case "arch":
		return runtime.GOARCH, true
	case "go-version":
		return runtime.Version(), true
	case "pagesize":
		return unix.Getpagesize(), true
	case "endianness":
		return endianness(), true
	case "fixnum-bits":
		return value.FixnumBits, true
	case "ffi":
		return h.ffi != nil, true
	case "stdin-tty":
		return term.IsTerminal(int(os.Stdin.Fd())), true
	case "stdout-tty":
		return term.IsTerminal(int(os.Stdout.Fd())), true
	case "gc-policy":
		return h.heap.Policy().String(), true
	case "heap-max-bytes":
		return h.heap.MaxBytes(), true
	case "version":
		return Version, true
	case "open-files":
		n, _, _ := h.openCounts()
		return n, true
	case "open-libraries":
		_, n, _ := h.openCounts()
		return n, true
	case "open-symbols":
		_, _, n := h.openCounts()
		return n, true
	}
	return nil, false
}

// FeatureNames lists the names sys_feature answers.
var FeatureNames = []string{
	"os", "arch", "go-version", "pagesize", "endianness", "fixnum-bits",
	"ffi", "stdin-tty", "stdout-tty", "gc-policy", "heap-max-bytes", "version",
	"open-files", "open-libraries", "open-symbols",
}

func (h *Host) SysFeature(_ context.Context, c call.SysFeature) (result.Result, error) {
	v, ok := h.feature(c.Name)
	if !ok {
		return result.Fail(syscall.ENOSYS), nil
	}
	return result.Ok(v), nil
}

// globals are the named slots sysglobal reads and writes.
type globals struct {
	mu       sync.Mutex
	slots    map[string]value.Value
	readOnly map[string]bool
}

func (h *Host) newGlobals() (*globals, error) {
	g := &globals{
		slots:    make(map[string]value.Value),
		readOnly: make(map[string]bool),
	}
	in, out, errOut := h.Stdio()
	g.define("stdin", in, true)
	g.define("stdout", out, true)
	g.define("stderr", errOut, true)

	names := make([]string, 0, len(h.cfg.Globals))
	for name := range h.cfg.Globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, taken := g.slots[name]; taken {
			return nil, errors.InvalidInput(errors.PhaseConfig, "global "+name+" is reserved")
		}
		id, err := h.heap.AllocString(h.cfg.Globals[name])
		if err != nil {
			return nil, err
		}
		g.define(name, value.FromObject(uint64(id)), false)
	}
	return g, nil
}

func (g *globals) define(name string, v value.Value, readOnly bool) {
	g.slots[name] = v
	if readOnly {
		g.readOnly[name] = true
	}
}

// Names lists the defined slots in order.
func (g *globals) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.slots))
	for name := range g.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SysGlobal reads a slot when Value is unspecified and writes it otherwise.
// Both return the value the slot held before the call.
func (h *Host) SysGlobal(_ context.Context, c call.SysGlobal) (result.Result, error) {
	g := h.globals
	g.mu.Lock()
	defer g.mu.Unlock()

	prev, ok := g.slots[c.Name]
	if !ok {
		return result.Fail(syscall.ENOENT), nil
	}
	if c.Value == value.Unspecified {
		return result.Ok(prev), nil
	}
	if g.readOnly[c.Name] {
		return result.Result{}, errors.PermissionDenied(errors.PhaseInvoke, "global "+c.Name+" is read-only")
	}
	g.slots[c.Name] = c.Value
	return result.Ok(prev), nil
}

// Globals lists the global slot names.
func (h *Host) Globals() []string {
	return h.globals.Names()
}
