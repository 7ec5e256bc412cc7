//go:build linux

// Package reactor wraps epoll as the single readiness multiplexer the
// server's main loop drains: one listening fd plus thousands of
// connection fds, level- or edge-triggered, one-shot on connections.
package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Interest flags, mirroring the epoll bits the connection engine and server
// orchestration reason about. Readable/Writable/PeerClosed compose with
// EdgeTriggered/OneShot via Reactor.Register/Modify.
type Interest uint32

const (
	Readable  Interest = unix.EPOLLIN
	Writable  Interest = unix.EPOLLOUT
	PeerClosed Interest = unix.EPOLLRDHUP
	// ErrEvent is never passed as an interest — it's reported back in
	// Event.Events for EPOLLERR/EPOLLHUP regardless of what was armed.
	ErrEvent Interest = unix.EPOLLERR | unix.EPOLLHUP

	EdgeTriggered Interest = unix.EPOLLET
	OneShot       Interest = unix.EPOLLONESHOT
)

// Event is one readiness notification.
type Event struct {
	FD     int
	Events Interest
}

// Readable reports whether the event signals read-readiness.
func (e Event) Readable() bool { return e.Events&Readable != 0 }

// Writable reports whether the event signals write-readiness.
func (e Event) Writable() bool { return e.Events&Writable != 0 }

// PeerClosed reports RDHUP/HUP/ERR — any peer-shutdown-or-error condition.
func (e Event) PeerClosed() bool {
	return e.Events&(PeerClosed|ErrEvent) != 0
}

// Reactor owns one epoll instance and its ready-event scratch buffer. The
// reactor thread is its sole caller.
type Reactor struct {
	epfd   int
	events []unix.EpollEvent
}

// New creates an epoll instance sized to hold up to maxEvents ready events
// per Wait call.
func New(maxEvents int) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	if maxEvents <= 0 {
		maxEvents = 1024
	}
	return &Reactor{epfd: epfd, events: make([]unix.EpollEvent, maxEvents)}, nil
}

// Register arms fd with the given interest (EPOLL_CTL_ADD).
func (r *Reactor) Register(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: uint32(interest), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// Modify re-arms fd with a new interest set (EPOLL_CTL_MOD) — the way the
// reactor rearms a one-shot connection after a worker task finishes.
func (r *Reactor) Modify(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: uint32(interest), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

// Deregister removes fd from the watch set (EPOLL_CTL_DEL).
func (r *Reactor) Deregister(fd int) error {
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks for up to timeoutMs (-1 blocks indefinitely, 0 returns
// immediately) and returns the ready events. EINTR is retried transparently
// by returning an empty, non-error result so the caller's loop just spins
// back into the timer/wait cycle.
func (r *Reactor) Wait(timeoutMs int) ([]Event, error) {
	n, err := unix.EpollWait(r.epfd, r.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("reactor: epoll_wait: %w", err)
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = Event{FD: int(r.events[i].Fd), Events: Interest(r.events[i].Events)}
	}
	return out, nil
}

// Close closes the underlying epoll fd.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}
