package host

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/systrap/heap"
)

// statsDumper writes one JSON record per collection while enabled. Turning
// it on while it is already on switches the target.
type statsDumper struct {
	mu     sync.Mutex
	mode   os.FileMode
	log    *zap.Logger
	file   *os.File // owned target, closed when switched away from
	target string
}

func newStatsDumper(mode os.FileMode) *statsDumper {
	return &statsDumper{mode: mode}
}

func newStatsLogger(w io.Writer) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.MessageKey = "event"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), zap.DebugLevel)
	return zap.New(core)
}

// toFile appends records to path.
func (d *statsDumper) toFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, d.mode)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.switchLocked(newStatsLogger(f), f, path)
	return nil
}

// toWriter sends records to w, which the dumper does not own.
func (d *statsDumper) toWriter(w io.Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.switchLocked(newStatsLogger(w), nil, "stdout")
}

func (d *statsDumper) off() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.switchLocked(nil, nil, "")
}

func (d *statsDumper) switchLocked(log *zap.Logger, f *os.File, target string) {
	if d.log != nil {
		_ = d.log.Sync()
	}
	if d.file != nil {
		d.file.Close()
	}
	d.log, d.file, d.target = log, f, target
	Logger().Debug("stats dump target", zap.String("target", target))
}

func (d *statsDumper) enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.log != nil
}

func (d *statsDumper) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.log != nil {
		_ = d.log.Sync()
	}
}

// record is installed as the heap collection hook.
func (d *statsDumper) record(kind heap.CollectKind, s heap.Stats) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.log == nil {
		return
	}
	d.log.Info("gc",
		zap.Stringer("kind", kind),
		zap.Uint64("collections", s.Collections),
		zap.Uint64("minor", s.MinorCollections),
		zap.Uint64("major", s.MajorCollections),
		zap.Uint64("allocated_bytes", s.AllocatedBytes),
		zap.Uint64("reclaimed_bytes", s.ReclaimedBytes),
		zap.Uint64("moved_objects", s.MovedObjects),
		zap.Int("live_objects", s.LiveObjects),
		zap.Int("live_bytes", s.LiveBytes),
		zap.Int("pinned_objects", s.PinnedObjects),
		zap.Int("arena_bytes", s.ArenaBytes),
		zap.Duration("pause", s.LastPause))
}
