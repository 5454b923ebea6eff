// Package netpoll implements the readiness multiplexer the Connection
// layer uses to poll several connections at once for readable or
// exceptional status (spec.md §4.8), backed by a real poll(2) call
// against the raw file descriptors of the underlying TCP connections.
package netpoll

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// ErrNegativeTimeout is returned when the requested timeout has a
// negative seconds or microseconds component.
var ErrNegativeTimeout = errors.New("netpoll: negative timeout component")

// ErrNothingPollable is returned when neither the read-interest nor the
// exception-interest set contains any handle eligible to be polled.
var ErrNothingPollable = errors.New("netpoll: no pollable handle in either set")

// Handle is anything the multiplexer can poll: a raw connection plus a
// caller-supplied eligibility check (spec.md §4.8 calls a handle
// "ineligible" once its state is ≤ ready or == quit_sent).
type Handle interface {
	// RawConn exposes the syscall-level file descriptor.
	RawConn() (syscall.RawConn, error)
	// Pollable reports whether this handle's connection state permits
	// polling at all.
	Pollable() bool
}

// Poll polls readSet for readability and exceptSet for exceptional
// condition, for up to timeout. It returns the handles from each set that
// became ready, preserving relative order, plus the handles that were
// never eligible for polling (spec.md §4.8).
func Poll(readSet, exceptSet []Handle, timeout time.Duration) (readyRead, readyExcept, notPolled []Handle, err error) {
	if timeout < 0 {
		return nil, nil, nil, ErrNegativeTimeout
	}

	var pollable []Handle
	var fds []unix.PollFd
	index := map[int]Handle{}

	addSet := func(set []Handle, readFlag, exceptFlag int16) {
		for _, h := range set {
			if !h.Pollable() {
				notPolled = append(notPolled, h)
				continue
			}
			fd, err := rawFD(h)
			if err != nil {
				notPolled = append(notPolled, h)
				continue
			}
			pollable = append(pollable, h)
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: readFlag | exceptFlag})
			index[fd] = h
		}
	}

	addSet(readSet, unix.POLLIN, 0)
	addSet(exceptSet, 0, unix.POLLPRI)

	if len(fds) == 0 {
		return nil, nil, notPolled, ErrNothingPollable
	}

	timeoutMs := int(timeout.Milliseconds())
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		return nil, nil, notPolled, fmt.Errorf("netpoll: poll: %w", err)
	}
	if n == 0 {
		return nil, nil, notPolled, nil
	}

	for _, pfd := range fds {
		h := index[int(pfd.Fd)]
		if pfd.Revents&unix.POLLIN != 0 {
			readyRead = append(readyRead, h)
		}
		if pfd.Revents&(unix.POLLPRI|unix.POLLERR|unix.POLLHUP) != 0 {
			readyExcept = append(readyExcept, h)
		}
	}

	return readyRead, readyExcept, notPolled, nil
}

func rawFD(h Handle) (int, error) {
	rc, err := h.RawConn()
	if err != nil {
		return 0, err
	}
	var fd int
	ctrlErr := rc.Control(func(f uintptr) { fd = int(f) })
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return fd, nil
}

// TCPHandle adapts a *net.TCPConn plus a pollability check to the Handle
// interface.
type TCPHandle struct {
	Conn        *net.TCPConn
	IsPollable  func() bool
}

func (h *TCPHandle) Pollable() bool { return h.IsPollable() }

func (h *TCPHandle) RawConn() (syscall.RawConn, error) {
	return h.Conn.SyscallConn()
}
