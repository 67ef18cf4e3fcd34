package host

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/result"
)

// Exit flushes the stats dumper and ends the process with the given status.
func (h *Host) Exit(_ context.Context, c call.Exit) (result.Result, error) {
	Logger().Debug("exit", zap.Int32("code", c.Code))
	h.stats.flush()
	h.exit(int(c.Code))
	return result.Unspecified(), nil
}

// System runs a command through the configured shell with inherited stdio
// and returns its exit status.
func (h *Host) System(ctx context.Context, c call.System) (result.Result, error) {
	cmd := exec.CommandContext(ctx, h.cfg.Process.Shell, "-c", c.Command)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result.Ok(0), nil
	case errors.As(err, &exitErr):
		return result.Ok(exitErr.ExitCode()), nil
	}
	return result.Fail(errnoOf(err)), nil
}

func (h *Host) Chdir(_ context.Context, c call.Chdir) (result.Result, error) {
	if err := unix.Chdir(c.Path); err != nil {
		return result.Fail(errnoOf(err)), nil
	}
	return result.Ok(), nil
}

func (h *Host) Cwd(_ context.Context, _ call.Cwd) (result.Result, error) {
	dir, err := unix.Getwd()
	if err != nil {
		return result.Fail(errnoOf(err)), nil
	}
	return result.Ok(dir), nil
}
