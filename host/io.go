package host

import (
	"context"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/systrap/call"
	"github.com/wippyai/systrap/result"
	"github.com/wippyai/systrap/value"
)

// file is an open descriptor in the handle table.
type file struct {
	name string
	fd   int
	std  bool
}

// Drop closes the descriptor when the table shuts down. The standard
// descriptors stay open.
func (f *file) Drop() {
	if !f.std {
		unix.Close(f.fd)
	}
}

func hostOpenFlags(f call.OpenFlags) int {
	var flags int
	switch {
	case f&call.OpenRead != 0 && f&call.OpenWrite != 0:
		flags = unix.O_RDWR
	case f&call.OpenWrite != 0:
		flags = unix.O_WRONLY
	default:
		flags = unix.O_RDONLY
	}
	if f&call.OpenAppend != 0 {
		flags |= unix.O_APPEND
	}
	if f&call.OpenCreate != 0 {
		flags |= unix.O_CREAT
	}
	if f&call.OpenTruncate != 0 {
		flags |= unix.O_TRUNC
	}
	if f&call.OpenExclusive != 0 {
		flags |= unix.O_EXCL
	}
	return flags | unix.O_CLOEXEC
}

// Open opens path and returns a file handle. When the handle table refuses
// the descriptor it is closed again and the trap fails with EMFILE; a file
// this call created exclusively is removed as well. A file created without
// OpenExclusive may have existed before the call, so it is left in place.
func (h *Host) Open(_ context.Context, c call.Open) (result.Result, error) {
	fd, err := retry(func() (int, error) {
		return unix.Open(c.Path, hostOpenFlags(c.Flags), h.cfg.Process.FileMode)
	})
	if err != nil {
		return result.Fail(errnoOf(err)), nil
	}

	handle := h.files.Insert(&file{fd: fd, name: c.Path})
	if handle == 0 {
		unix.Close(fd)
		if c.Flags&(call.OpenCreate|call.OpenExclusive) == call.OpenCreate|call.OpenExclusive {
			if err := unix.Unlink(c.Path); err != nil {
				Logger().Warn("remove refused file", zap.String("path", c.Path), zap.Error(err))
			}
		}
		return result.Fail(syscall.EMFILE), nil
	}
	return result.Ok(result.Handle{Kind: value.HandleFile, Handle: handle}), nil
}

func (h *Host) Close(_ context.Context, c call.Close) (result.Result, error) {
	f, ok := h.files.Remove(c.File)
	if !ok {
		return result.Fail(syscall.EBADF), nil
	}
	if f.std {
		return result.Ok(), nil
	}
	if err := unix.Close(f.fd); err != nil {
		return result.Fail(errnoOf(err)), nil
	}
	return result.Ok(), nil
}

// Read reads up to count bytes. The count is capped at the room left in the
// heap, so the bytes read can always be returned; when there is no room at
// all the trap fails with ENOMEM before the descriptor is touched.
func (h *Host) Read(_ context.Context, c call.Read) (result.Result, error) {
	f, ok := h.files.Get(c.File)
	if !ok {
		return result.Fail(syscall.EBADF), nil
	}
	count := int(c.Count)
	if count < 0 {
		return result.Fail(syscall.EINVAL), nil
	}
	if room := h.heap.Room(); count > room {
		if room == 0 {
			return result.Fail(syscall.ENOMEM), nil
		}
		Logger().Debug("read count capped", zap.Int("count", count), zap.Int("room", room))
		count = room
	}
	buf := make([]byte, count)
	n, err := retry(func() (int, error) {
		return unix.Read(f.fd, buf)
	})
	if err != nil {
		return result.Fail(errnoOf(err)), nil
	}
	return result.Ok(n, buf[:n]), nil
}

// Write writes every byte, retrying short writes. If a later write fails
// after some bytes went out, the count written is reported with the errno.
func (h *Host) Write(_ context.Context, c call.Write) (result.Result, error) {
	f, ok := h.files.Get(c.File)
	if !ok {
		return result.Fail(syscall.EBADF), nil
	}
	written := 0
	for written < len(c.Data) {
		n, err := retry(func() (int, error) {
			return unix.Write(f.fd, c.Data[written:])
		})
		if n > 0 {
			written += n
		}
		if err != nil {
			if written > 0 {
				return result.Partial(errnoOf(err), written), nil
			}
			return result.Fail(errnoOf(err)), nil
		}
		if n == 0 {
			break
		}
	}
	return result.Ok(written), nil
}

func (h *Host) Unlink(_ context.Context, c call.Unlink) (result.Result, error) {
	if err := unix.Unlink(c.Path); err != nil {
		return result.Fail(errnoOf(err)), nil
	}
	return result.Ok(), nil
}

func (h *Host) Rename(_ context.Context, c call.Rename) (result.Result, error) {
	if err := unix.Rename(c.From, c.To); err != nil {
		return result.Fail(errnoOf(err)), nil
	}
	return result.Ok(), nil
}

func (h *Host) Access(_ context.Context, c call.Access) (result.Result, error) {
	if err := unix.Access(c.Path, uint32(c.Mode)); err != nil {
		return result.Fail(errnoOf(err)), nil
	}
	return result.Ok(), nil
}

// Mtime reports the modification time in local time as
// (year month day hour minute second).
func (h *Host) Mtime(_ context.Context, c call.Mtime) (result.Result, error) {
	var st unix.Stat_t
	if err := unix.Stat(c.Path, &st); err != nil {
		return result.Fail(errnoOf(err)), nil
	}
	t := time.Unix(st.Mtim.Unix()).Local()
	return result.Ok(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second()), nil
}

// PollInput reports 1 when a read would not block and 0 otherwise.
func (h *Host) PollInput(_ context.Context, c call.PollInput) (result.Result, error) {
	f, ok := h.files.Get(c.File)
	if !ok {
		return result.Fail(syscall.EBADF), nil
	}
	fds := []unix.PollFd{{Fd: int32(f.fd), Events: unix.POLLIN}}
	n, err := retry(func() (int, error) {
		return unix.Poll(fds, 0)
	})
	if err != nil {
		return result.Fail(errnoOf(err)), nil
	}
	if n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
		return result.Ok(1), nil
	}
	if n > 0 && fds[0].Revents&unix.POLLNVAL != 0 {
		return result.Fail(syscall.EBADF), nil
	}
	return result.Ok(0), nil
}
