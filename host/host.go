package host

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/wippyai/systrap"
	"github.com/wippyai/systrap/config"
	"github.com/wippyai/systrap/heap"
	"github.com/wippyai/systrap/resource"
	"github.com/wippyai/systrap/value"
)

// Version is reported by the version feature.
const Version = "0.4.0"

// Resource type ids in the handle table.
const (
	typeFile uint32 = iota + 1
	typeLibrary
	typeSymbol
)

// Host holds the state every handler works against.
type Host struct {
	cfg     *config.Config
	heap    *heap.Heap
	mem     systrap.UnsafeMemory
	table   *resource.Table
	files   *resource.Typed[*file]
	ffi     *bridge
	stats   *statsDumper
	signals *signalGate
	globals *globals
	exit    func(int)
	stdout  io.Writer
	stdio   [3]resource.Handle
	gcPct   int // host GC percent before New applied the configured one
}

// Option customizes a Host.
type Option func(*Host)

// WithExitFunc replaces os.Exit for the exit trap.
func WithExitFunc(fn func(int)) Option {
	return func(h *Host) { h.exit = fn }
}

// WithHeap uses an existing heap, for example one restored from an image.
func WithHeap(hp *heap.Heap) Option {
	return func(h *Host) { h.heap = hp }
}

// WithStdout redirects stats_dump_stdout output.
func WithStdout(w io.Writer) Option {
	return func(h *Host) { h.stdout = w }
}

// New creates a host from configuration. A nil cfg uses config.Default.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Host, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Host{
		cfg:    cfg,
		table:  resource.NewTable(),
		exit:   os.Exit,
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.heap == nil {
		hp, err := newHeap(cfg)
		if err != nil {
			return nil, err
		}
		h.heap = hp
	}
	h.mem = h.heap.Unsafe()
	h.table.Subscribe(handleLog{})
	h.files = resource.NewTyped[*file](h.table, typeFile)

	for i, f := range []*os.File{os.Stdin, os.Stdout, os.Stderr} {
		h.stdio[i] = h.files.Insert(&file{fd: int(f.Fd()), name: f.Name(), std: true})
	}

	h.stats = newStatsDumper(os.FileMode(cfg.Process.FileMode))
	h.heap.OnCollect(h.stats.record)
	switch {
	case cfg.Stats.DumpStdout:
		h.stats.toWriter(h.stdout)
	case cfg.Stats.DumpFile != "":
		if err := h.stats.toFile(cfg.Stats.DumpFile); err != nil {
			return nil, fmt.Errorf("stats dump file: %w", err)
		}
	}

	g, err := h.newGlobals()
	if err != nil {
		return nil, err
	}
	h.globals = g

	h.signals = newSignalGate(cfg.Process.Signals())
	h.gcPct = debug.SetGCPercent(cfg.GC.HostGCPercent)

	if cfg.FFI.Enabled {
		b, err := newBridge(ctx, h.table, cfg.FFI)
		if err != nil {
			debug.SetGCPercent(h.gcPct)
			h.signals.stop()
			h.stats.off()
			return nil, err
		}
		h.ffi = b
	}

	Logger().Debug("host ready",
		zap.Int("heap_bytes", cfg.Heap.InitialBytes),
		zap.String("gc_policy", h.heap.Policy().String()),
		zap.Bool("ffi", h.ffi != nil))
	return h, nil
}

func newHeap(cfg *config.Config) (*heap.Heap, error) {
	policy, err := heap.ParsePolicy(cfg.GC.Policy)
	if err != nil {
		return nil, err
	}
	opts := heap.Options{
		InitialBytes: cfg.Heap.InitialBytes,
		MaxBytes:     cfg.Heap.MaxBytes,
		GuardBytes:   cfg.Heap.GuardBytes,
		AutoCollect:  cfg.Heap.AutoCollect,
		Policy:       policy,
	}
	if cfg.Runtime.HeapFile == "" {
		return heap.New(opts), nil
	}

	f, err := os.Open(cfg.Runtime.HeapFile)
	if err != nil {
		return nil, fmt.Errorf("open heap image: %w", err)
	}
	defer f.Close()
	hp, img, err := heap.Load(f, opts)
	if err != nil {
		return nil, fmt.Errorf("load heap image %s: %w", cfg.Runtime.HeapFile, err)
	}
	Logger().Info("heap image loaded", zap.String("id", img.ID), zap.String("entry", img.Entry))
	return hp, nil
}

// Heap returns the managed heap.
func (h *Host) Heap() *heap.Heap {
	return h.heap
}

// Stdio returns the handle values of stdin, stdout and stderr.
func (h *Host) Stdio() (in, out, errOut value.Value) {
	return value.FromHandle(value.HandleFile, uint32(h.stdio[0])),
		value.FromHandle(value.HandleFile, uint32(h.stdio[1])),
		value.FromHandle(value.HandleFile, uint32(h.stdio[2]))
}

// OnSignal installs fn to receive signals the gate delivers.
func (h *Host) OnSignal(fn func(os.Signal)) {
	h.signals.setDeliver(fn)
}

// Shutdown releases every resource the host holds and restores the host GC
// percent. Open files other than the standard descriptors are closed.
func (h *Host) Shutdown(ctx context.Context) error {
	h.signals.stop()
	h.stats.off()
	debug.SetGCPercent(h.gcPct)
	h.logLeaked()
	// Libraries are dropped with the table, before their runtime closes.
	firstErr := h.table.Close()
	if h.ffi != nil {
		if err := h.ffi.close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
