package host

import (
	"os"
	"os/signal"
	"sync"

	"go.uber.org/zap"
)

// signalGate delivers intercepted signals, queueing them while blocked.
type signalGate struct {
	mu       sync.Mutex
	blocked  bool
	pending  []os.Signal
	deliver  func(os.Signal)
	ch       chan os.Signal
	stopOnce sync.Once
}

func newSignalGate(sigs []os.Signal) *signalGate {
	g := &signalGate{deliver: logSignal}
	if len(sigs) == 0 {
		return g
	}
	g.ch = make(chan os.Signal, 16)
	signal.Notify(g.ch, sigs...)
	go func() {
		for sig := range g.ch {
			g.receive(sig)
		}
	}()
	return g
}

func logSignal(sig os.Signal) {
	Logger().Info("signal", zap.Stringer("signal", sig))
}

func (g *signalGate) setDeliver(fn func(os.Signal)) {
	if fn == nil {
		fn = logSignal
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deliver = fn
}

func (g *signalGate) receive(sig os.Signal) {
	g.mu.Lock()
	if g.blocked {
		g.pending = append(g.pending, sig)
		g.mu.Unlock()
		return
	}
	fn := g.deliver
	g.mu.Unlock()
	fn(sig)
}

// setBlocked changes the gate and returns the previous state. Unblocking
// delivers everything queued, in arrival order.
func (g *signalGate) setBlocked(block bool) bool {
	g.mu.Lock()
	prev := g.blocked
	g.blocked = block
	var queued []os.Signal
	if prev && !block {
		queued, g.pending = g.pending, nil
	}
	fn := g.deliver
	g.mu.Unlock()

	for _, sig := range queued {
		fn(sig)
	}
	return prev
}

func (g *signalGate) stop() {
	if g.ch == nil {
		return
	}
	g.stopOnce.Do(func() {
		signal.Stop(g.ch)
		close(g.ch)
	})
}
