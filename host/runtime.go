package host

import (
	"context"
	"os"
	"runtime"
	"runtime/debug"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/heap"
	"github.com/wippyai/systrap/result"
)

// GC collects the arena and then the Go heap, returning the arena bytes
// reclaimed.
func (h *Host) GC(_ context.Context, c call.GC) (result.Result, error) {
	var kind heap.CollectKind
	switch c.Kind {
	case call.GCMinor:
		kind = heap.CollectMinor
	case call.GCMajor:
		kind = heap.CollectMajor
	default:
		return result.Result{}, errors.New(errors.PhaseInvoke, errors.KindOutOfRange).
			Op("gc").
			Value(c.Kind).
			Detail("collection kind %d is neither minor (0) nor major (1)", c.Kind).
			Build()
	}
	reclaimed := h.heap.Collect(kind)
	runtime.GC()
	return result.Value(reclaimed), nil
}

// DumpHeap writes a heap image to path.
func (h *Host) DumpHeap(_ context.Context, c call.DumpHeap) (result.Result, error) {
	f, err := os.OpenFile(c.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(h.cfg.Process.FileMode))
	if err != nil {
		return result.Fail(errnoOf(err)), nil
	}
	id, err := h.heap.Dump(f, c.Entry)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		if _, ok := errors.From(err); ok {
			return result.Result{}, err
		}
		return result.Fail(errnoOf(err)), nil
	}
	Logger().Info("heap dumped", zap.String("path", c.Path), zap.String("id", id))
	return result.Ok(), nil
}

// GetResourceUsage returns, in order: user ms, system ms, max RSS KiB,
// minor faults, major faults, arena collections, arena bytes allocated,
// arena bytes reclaimed, arena live bytes, arena pause ms, Go collections
// and Go heap bytes. When getrusage fails the first five are -1.
func (h *Host) GetResourceUsage(_ context.Context, _ call.GetResourceUsage) (result.Result, error) {
	proc := [5]int64{-1, -1, -1, -1, -1}
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		Logger().Warn("getrusage failed", zap.Error(err))
	} else {
		proc = [5]int64{
			ru.Utime.Nano() / 1e6,
			ru.Stime.Nano() / 1e6,
			int64(ru.Maxrss),
			int64(ru.Minflt),
			int64(ru.Majflt),
		}
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s := h.heap.Stats()

	return result.Tuple(
		proc[0], proc[1], proc[2], proc[3], proc[4],
		s.Collections,
		s.AllocatedBytes,
		s.ReclaimedBytes,
		s.LiveBytes,
		s.TotalPause.Milliseconds(),
		ms.NumGC,
		ms.HeapAlloc,
	), nil
}

func (h *Host) StatsDumpOn(_ context.Context, c call.StatsDumpOn) (result.Result, error) {
	if err := h.stats.toFile(c.Path); err != nil {
		return result.Fail(errnoOf(err)), nil
	}
	return result.Ok(), nil
}

func (h *Host) StatsDumpOff(_ context.Context, _ call.StatsDumpOff) (result.Result, error) {
	h.stats.off()
	return result.Unspecified(), nil
}

func (h *Host) StatsDumpStdout(_ context.Context, _ call.StatsDumpStdout) (result.Result, error) {
	h.stats.toWriter(h.stdout)
	return result.Unspecified(), nil
}

// IFlush validates a code object after its bytes changed.
func (h *Host) IFlush(_ context.Context, c call.IFlush) (result.Result, error) {
	if _, err := h.heap.Flush(c.Code); err != nil {
		return result.Result{}, err
	}
	return result.Unspecified(), nil
}

// GCCtl adjusts a collector parameter and returns its previous value.
func (h *Host) GCCtl(_ context.Context, c call.GCCtl) (result.Result, error) {
	switch c.Op {
	case call.GCCtlHostPercent:
		return result.Value(debug.SetGCPercent(int(c.Arg))), nil
	case call.GCCtlHostMemoryLimit:
		return result.Value(debug.SetMemoryLimit(c.Arg)), nil
	case call.GCCtlAutoCollect:
		if h.heap.SetAutoCollect(c.Arg != 0) {
			return result.Value(1), nil
		}
		return result.Value(0), nil
	case call.GCCtlArenaMaxBytes:
		prev, err := h.heap.SetMaxBytes(int(c.Arg))
		if err != nil {
			return result.Result{}, err
		}
		return result.Value(prev), nil
	}
	return result.Result{}, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
		Op("gcctl").
		Errno(syscall.EINVAL).
		Detail("unknown gcctl operation %d", c.Op).
		Build()
}

func (h *Host) BlockSignals(_ context.Context, c call.BlockSignals) (result.Result, error) {
	return result.Value(h.signals.setBlocked(c.Block)), nil
}
