package config

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

var signalNames = map[string]unix.Signal{
	"SIGHUP":   unix.SIGHUP,
	"SIGINT":   unix.SIGINT,
	"SIGQUIT":  unix.SIGQUIT,
	"SIGUSR1":  unix.SIGUSR1,
	"SIGUSR2":  unix.SIGUSR2,
	"SIGPIPE":  unix.SIGPIPE,
	"SIGALRM":  unix.SIGALRM,
	"SIGTERM":  unix.SIGTERM,
	"SIGCHLD":  unix.SIGCHLD,
	"SIGWINCH": unix.SIGWINCH,
}

// Signals resolves process.intercept-signals. Validate has already rejected
// unknown names.
func (p Process) Signals() []os.Signal {
	sigs := make([]os.Signal, 0, len(p.InterceptSignals))
	for _, name := range p.InterceptSignals {
		if s, ok := signalNames[strings.ToUpper(name)]; ok {
			sigs = append(sigs, s)
		}
	}
	return sigs
}
