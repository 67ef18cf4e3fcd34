package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/systrap/config"
	"github.com/wippyai/systrap/dispatch"
	"github.com/wippyai/systrap/heap"
	"github.com/wippyai/systrap/host"
	"github.com/wippyai/systrap/opcode"
)

type argList []string

func (a *argList) String() string     { return strings.Join(*a, " ") }
func (a *argList) Set(s string) error { *a = append(*a, s); return nil }

func main() {
	var (
		args        argList
		configFile  = flag.String("config", "", "Path to systrap.toml (default: search upward from the working directory)")
		opName      = flag.String("op", "", "Trap to issue, by name or id")
		list        = flag.Bool("list", false, "List the opcode table and exit")
		interactive = flag.Bool("i", false, "Interactive console")
		stats       = flag.Bool("stats", false, "Dump collection stats to stdout")
		quiet       = flag.Bool("quiet", false, "Only log errors")
		annoy       = flag.Bool("annoy-user", false, "Debug logging")
		annoyMore   = flag.Bool("annoy-user-greatly", false, "Debug logging with callers and stacks")
	)
	flag.Var(&args, "arg", "Trap argument (repeatable)")
	flag.Parse()

	if *list {
		listOpcodes()
		return
	}
	if *opName == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: systrap -list")
		fmt.Fprintln(os.Stderr, "       systrap -op <name|id> [-arg value ...]")
		fmt.Fprintln(os.Stderr, "       systrap -i  (interactive console)")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	switch {
	case *annoyMore:
		cfg.Runtime.LogLevel = config.LevelSupremelyAnnoying
	case *annoy:
		cfg.Runtime.LogLevel = config.LevelAnnoying
	case *quiet:
		cfg.Runtime.LogLevel = config.LevelQuiet
	}
	if *stats {
		cfg.Stats.DumpStdout = true
	}

	log, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	host.SetLogger(log.Named("host"))
	heap.SetLogger(log.Named("heap"))
	dispatch.SetLogger(log.Named("dispatch"))

	ctx := context.Background()
	d, err := newDispatcher(ctx, cfg)
	if err != nil {
		log.Error("start", zap.Error(err))
		os.Exit(1)
	}

	code := 0
	if *interactive {
		err = runInteractive(d)
	} else {
		code, err = run(ctx, d, *opName, args)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code = 1
	}
	if err := d.Close(ctx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
	if code != 0 {
		_ = log.Sync()
		os.Exit(code)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.FindAndLoad(wd)
}

func newDispatcher(ctx context.Context, cfg *config.Config) (*dispatch.Dispatcher, error) {
	h, err := host.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return dispatch.New(h), nil
}

func listOpcodes() {
	fmt.Printf("%-4s %-22s %-7s %-34s %s\n", "id", "name", "family", "arguments", "result")
	for _, op := range opcode.All() {
		sig, _ := op.Signature()
		fmt.Printf("%-4d %-22s %-7s %-34s %s\n", int(op), sig.Name, sig.Family, formatArgs(sig), formatShape(sig))
	}
}

func formatArgs(sig opcode.Signature) string {
	parts := make([]string, len(sig.Args))
	for i, k := range sig.Args {
		parts[i] = k.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatShape(sig opcode.Signature) string {
	s := sig.Shape.String()
	if sig.TupleArity > 0 {
		s += fmt.Sprintf("/%d", sig.TupleArity)
	}
	return s
}

// issue parses texts for op and dispatches the trap.
func issue(ctx context.Context, d *dispatch.Dispatcher, op opcode.Opcode, texts []string) (dispatch.Outcome, error) {
	vals, err := parseArgs(d.Host().Heap(), op, texts)
	if err != nil {
		return dispatch.Outcome{}, err
	}
	return d.Dispatch(ctx, int64(op), vals), nil
}

func formatOutcome(d *dispatch.Dispatcher, o dispatch.Outcome) string {
	hp := d.Host().Heap()
	parts := make([]string, len(o.Values))
	for i, v := range o.Values {
		parts[i] = describe(hp, v)
	}
	vals := strings.Join(parts, " ")
	switch o.Status {
	case dispatch.StatusSuccess:
		return vals
	case dispatch.StatusFailure:
		return fmt.Sprintf("failure: %v (errno %d)", o.Errno, int(o.Errno))
	case dispatch.StatusPartial:
		return fmt.Sprintf("partial: %s, then %v", vals, o.Errno)
	}
	return fmt.Sprintf("%s: %v", o.Status, o.Err())
}

// run issues one trap and returns the process exit code: 0 on success, 2
// when the trap did not succeed.
func run(ctx context.Context, d *dispatch.Dispatcher, name string, texts []string) (int, error) {
	op, err := resolveOp(name)
	if err != nil {
		return 1, err
	}
	o, err := issue(ctx, d, op, texts)
	if err != nil {
		return 1, err
	}
	fmt.Println(formatOutcome(d, o))
	if !o.OK() && o.Status != dispatch.StatusPartial {
		return 2, nil
	}
	return 0, nil
}
