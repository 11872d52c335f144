// Package reactor wraps a single epoll instance: the process-wide
// readiness multiplexer described in spec.md §4.1. It replaces the
// teacher's raw syscall.EpollCreate1/EpollCtl/EpollWait calls with
// golang.org/x/sys/unix, matching how other_examples/toastsandwich-epoll-learn
// drives epoll from Go, but keeps the teacher's level-triggered,
// no-worker-pool shape: this reactor is meant to be driven by exactly
// one goroutine, per spec.md §5's strictly single-threaded model.
package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Interest is a bitset of readiness a descriptor is registered for.
type Interest uint32

const (
	Readable Interest = 1 << iota
	Writable
)

func (i Interest) epollBits() uint32 {
	var bits uint32
	if i&Readable != 0 {
		bits |= unix.EPOLLIN
	}
	if i&Writable != 0 {
		bits |= unix.EPOLLOUT
	}
	return bits
}

// Event is one ready descriptor surfaced by Poll.
type Event struct {
	Fd       int
	Readable bool
	Writable bool
	Err      bool
	Hup      bool
}

// Reactor owns one epoll file descriptor. There must be exactly one
// per process (spec.md §4.1).
type Reactor struct {
	epfd   int
	events []unix.EpollEvent
}

// New creates the process's epoll instance.
func New(maxEvents int) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	if maxEvents <= 0 {
		maxEvents = 256
	}
	return &Reactor{epfd: epfd, events: make([]unix.EpollEvent, maxEvents)}, nil
}

// Register adds fd to the interest set.
func (r *Reactor) Register(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: interest.epollBits(), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("reactor: register fd=%d: %w", fd, err)
	}
	return nil
}

// Modify changes the interest set for an already-registered fd.
func (r *Reactor) Modify(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: interest.epollBits(), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("reactor: modify fd=%d: %w", fd, err)
	}
	return nil
}

// Deregister removes fd from the interest set. Callers must
// deregister before close(fd) to avoid stale events (spec.md §4.1).
func (r *Reactor) Deregister(fd int) error {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("reactor: deregister fd=%d: %w", fd, err)
	}
	return nil
}

// Poll blocks for at most timeout for readiness events. A zero
// timeout returns immediately with whatever is ready; a negative
// timeout blocks until at least one event arrives.
// Spurious wakeups (an empty batch) are tolerated by callers.
func (r *Reactor) Poll(timeout time.Duration) ([]Event, error) {
	ms := int(timeout / time.Millisecond)
	if timeout < 0 {
		ms = -1
	} else if ms == 0 && timeout > 0 {
		ms = 1
	}

	n, err := unix.EpollWait(r.epfd, r.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("reactor: epoll_wait: %w", err)
	}

	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		e := r.events[i]
		out = append(out, Event{
			Fd:       int(e.Fd),
			Readable: e.Events&unix.EPOLLIN != 0,
			Writable: e.Events&unix.EPOLLOUT != 0,
			Err:      e.Events&unix.EPOLLERR != 0,
			Hup:      e.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
		})
	}
	return out, nil
}

// Close releases the epoll instance. Callers are responsible for
// having deregistered every fd first.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}
