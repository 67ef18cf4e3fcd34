package host

import (
	"errors"
	"os/exec"
	"syscall"
)

// errnoOf extracts the host errno from err without reinterpreting it.
func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	if errors.Is(err, exec.ErrNotFound) {
		return syscall.ENOENT
	}
	return syscall.EIO
}

// retry repeats fn while it fails with EINTR.
func retry[T any](fn func() (T, error)) (T, error) {
	for {
		v, err := fn()
		if err != syscall.EINTR {
			return v, err
		}
	}
}
