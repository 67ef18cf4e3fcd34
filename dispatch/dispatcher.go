package dispatch

import (
	"context"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/errors"
	"github.com/wippyai/systrap/host"
	"github.com/wippyai/systrap/marshal"
	"github.com/wippyai/systrap/opcode"
	"github.com/wippyai/systrap/result"
	"github.com/wippyai/systrap/value"
)

// FatalFunc handles an unrecoverable inconsistency, such as a damaged heap
// guard. The default logs and panics. If a replacement returns, the trap
// ends with StatusFatal.
type FatalFunc func(op opcode.Opcode, err error)

func defaultFatal(op opcode.Opcode, err error) {
	panic(errors.Wrap(errors.PhaseInvoke, errors.KindCorrupt, err, "fatal trap "+op.String()))
}

// Dispatcher routes traps to a host.
type Dispatcher struct {
	host  *host.Host
	enc   *result.Encoder
	locks [opcode.NumLockClasses]sync.Mutex
	fatal FatalFunc

	obsMu     sync.RWMutex
	observers []Observer
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithFatalFunc replaces the fatal escalation hook.
func WithFatalFunc(fn FatalFunc) Option {
	return func(d *Dispatcher) { d.fatal = fn }
}

// WithObserver subscribes o to state transitions.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observers = append(d.observers, o) }
}

// New creates a dispatcher over h. Encoded results are allocated in the
// host heap.
func New(h *host.Host, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		host:  h,
		enc:   result.NewEncoder(h.Heap()),
		fatal: defaultFatal,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Host returns the host the dispatcher routes to.
func (d *Dispatcher) Host() *host.Host {
	return d.host
}

// Subscribe adds an observer for state transitions.
func (d *Dispatcher) Subscribe(o Observer) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	d.observers = append(d.observers, o)
}

func (d *Dispatcher) notify(t Transition) {
	d.obsMu.RLock()
	defer d.obsMu.RUnlock()
	for _, o := range d.observers {
		o.OnTransition(t)
	}
}

// Dispatch runs the trap id with managed arguments.
func (d *Dispatcher) Dispatch(ctx context.Context, id int64, args []value.Value) Outcome {
	start := time.Now()
	t := &tracker{d: d, op: opcode.Unknown}

	t.to(StateValidating)
	op, ok := opcode.Resolve(id)
	if !ok {
		o := t.fail(Outcome{
			Opcode: opcode.Unknown,
			Status: StatusInvalidOpcode,
			err:    errors.InvalidOpcode(id),
		})
		d.log(o, start)
		return o
	}
	t.op = op

	t.to(StateMarshaling)
	c, err := marshal.Marshal(op, args, d.host.Heap())
	if err != nil {
		o := t.fail(d.marshalFailure(op, err))
		d.log(o, start)
		return o
	}

	o := d.run(ctx, t, c)
	d.log(o, start)
	return o
}

// Invoke runs a typed call, skipping resolution and marshaling.
func (d *Dispatcher) Invoke(ctx context.Context, c call.Call) Outcome {
	start := time.Now()
	if c == nil {
		o := Outcome{Opcode: opcode.Unknown, Status: StatusInvalidOpcode, err: errors.InvalidOpcode(int64(opcode.Unknown))}
		d.log(o, start)
		return o
	}
	t := &tracker{d: d, op: c.Opcode()}
	o := d.run(ctx, t, c)
	d.log(o, start)
	return o
}

func (d *Dispatcher) run(ctx context.Context, t *tracker, c call.Call) Outcome {
	op := c.Opcode()
	sig, _ := op.Signature()

	t.to(StateInvoking)
	r, err := d.locked(ctx, sig.Lock, c)
	if err != nil {
		return t.fail(d.failure(op, err))
	}

	t.to(StateEncoding)
	vals, err := d.enc.Encode(op, r)
	if err != nil {
		return t.fail(d.encodeFailure(op, r, err))
	}

	o := Outcome{Opcode: op, Values: vals}
	switch {
	case r.IsPartial():
		o.Status, o.Errno = StatusPartial, r.Errno
	case r.Failed():
		o.Status, o.Errno = StatusFailure, r.Errno
	}
	return t.done(o)
}

func (d *Dispatcher) locked(ctx context.Context, class opcode.LockClass, c call.Call) (result.Result, error) {
	if class != opcode.LockNone {
		mu := &d.locks[class]
		mu.Lock()
		defer mu.Unlock()
	}
	return invoke(ctx, d.host, c)
}

func (d *Dispatcher) marshalFailure(op opcode.Opcode, err error) Outcome {
	if e, ok := errors.From(err); ok && e.Kind == errors.KindCorrupt {
		return d.escalate(op, err)
	}
	return Outcome{Opcode: op, Status: StatusBadArguments, err: err}
}

// failure maps a handler or encoder error to an outcome.
func (d *Dispatcher) failure(op opcode.Opcode, err error) Outcome {
	o := Outcome{Opcode: op, err: err}
	e, ok := errors.From(err)
	if !ok {
		o.Status, o.Errno = StatusFailure, syscall.EIO
		o.Values = []value.Value{value.FromErrno(o.Errno)}
		return o
	}

	switch {
	case e.Kind == errors.KindCorrupt:
		return d.escalate(op, err)
	case e.Kind == errors.KindPermissionDenied:
		o.Status = StatusPermissionDenied
	case e.Kind == errors.KindOutOfRange, e.Kind == errors.KindMisaligned:
		o.Status = StatusOutOfRange
	case e.Kind == errors.KindInvalidOpcode:
		o.Status = StatusInvalidOpcode
	case e.IsBadArguments():
		o.Status = StatusBadArguments
	default:
		o.Status, o.Errno = StatusFailure, errnoFor(e)
		o.Values = []value.Value{value.FromErrno(o.Errno)}
	}
	return o
}

// encodeFailure maps an encoder error. The handler has already run, so when
// the heap ran out the scalar values it returned, such as the byte count of
// a read, are still reported with a partial status.
func (d *Dispatcher) encodeFailure(op opcode.Opcode, r result.Result, err error) Outcome {
	e, ok := errors.From(err)
	if !ok || e.Kind != errors.KindExhausted || r.Failed() {
		return d.failure(op, err)
	}
	sig, _ := op.Signature()
	if sig.Shape != opcode.ShapeStatus {
		return d.failure(op, err)
	}
	vals := d.enc.Scalars(r)
	if len(vals) == 0 {
		return d.failure(op, err)
	}
	return Outcome{Opcode: op, Status: StatusPartial, Values: vals, Errno: errnoFor(e), err: err}
}

func errnoFor(e *errors.Error) syscall.Errno {
	switch {
	case e.Errno != 0:
		return e.Errno
	case e.Kind == errors.KindExhausted:
		return syscall.ENOMEM
	case e.Kind == errors.KindNotFound:
		return syscall.ENOENT
	case e.Kind == errors.KindInvalidInput:
		return syscall.EINVAL
	case e.Kind == errors.KindUnsupported:
		return syscall.ENOSYS
	}
	return syscall.EIO
}

func (d *Dispatcher) escalate(op opcode.Opcode, err error) Outcome {
	Logger().Error("heap corruption", zap.Stringer("op", op), zap.Error(err))
	d.fatal(op, err)
	return Outcome{Opcode: op, Status: StatusFatal, err: err}
}

func (d *Dispatcher) log(o Outcome, start time.Time) {
	l := Logger()
	if ce := l.Check(zap.DebugLevel, "trap"); ce != nil {
		fields := []zap.Field{
			zap.Stringer("op", o.Opcode),
			zap.Stringer("status", o.Status),
			zap.Duration("took", time.Since(start)),
		}
		if o.Errno != 0 {
			fields = append(fields, zap.Int("errno", int(o.Errno)), zap.String("errno_text", o.Errno.Error()))
		}
		if o.err != nil {
			fields = append(fields, zap.Error(o.err))
		}
		ce.Write(fields...)
	}
}

// Close shuts the host down, closing every open handle.
func (d *Dispatcher) Close(ctx context.Context) error {
	return d.host.Shutdown(ctx)
}
