//go:build linux

// Package server wires the reactor, worker pool, timing wheel, and
// per-connection engine into a single-host HTTP server: an accept/dispatch
// loop over a one-shot epoll registration, a bounded worker pool running
// each connection's read/parse/write work, and a min-heap of idle-timeout
// deadlines evicting connections that go quiet.
//
// The reactor goroutine is the sole mutator of the epoll set, the timer
// heap, and the connection table. Worker tasks never touch any of the
// three directly: a task computes a taskResult describing what happened
// to its connection and hands it back over a channel, waking the reactor
// out of epoll_wait via an eventfd so the result gets applied promptly.
package server

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/lowlatency/yawn/internal/config"
	"github.com/lowlatency/yawn/internal/connection"
	"github.com/lowlatency/yawn/internal/logx"
	"github.com/lowlatency/yawn/internal/netutil"
	"github.com/lowlatency/yawn/internal/reactor"
	"github.com/lowlatency/yawn/internal/timer"
	"github.com/lowlatency/yawn/internal/workerpool"
)

// outcome is what a worker task accomplished for one connection; the
// reactor goroutine turns it into the matching timer/epoll/table mutation.
type outcome int

const (
	outcomeRearmRead outcome = iota
	outcomeRearmWrite
	outcomeClose
)

// taskResult is a worker task's report back to the reactor goroutine. The
// reactor applies it in completeTask; nothing about a Server's shared
// state is touched from the worker side.
type taskResult struct {
	fd      int
	outcome outcome
}

// Server owns the listening socket, the reactor, the worker pool, and the
// live connection table.
type Server struct {
	cfg      config.Config
	listenFD int
	reactor  *reactor.Reactor
	pool     *workerpool.Pool
	timers   *timer.Heap[int]
	conns    map[int]*connection.Connection

	connInterest      reactor.Interest
	connWriteInterest reactor.Interest
	listenInterest    reactor.Interest

	idleTimeout time.Duration
	closing     atomic.Bool

	// results carries completed workers' taskResults back to the reactor
	// goroutine; wakeFD is an eventfd the worker side bumps after pushing
	// so a blocked epoll_wait notices without polling the channel.
	results chan taskResult
	wakeFD  int
}

// New brings up the listening socket and reactor but does not yet start
// serving; call Run for that.
func New(cfg config.Config) (*Server, error) {
	connET := cfg.TrigMode&2 != 0
	listenET := cfg.TrigMode&1 != 0

	listenFD, err := netutil.Listen(netutil.ListenConfig{
		IP:         cfg.ListenIP,
		Port:       cfg.ListenPort,
		OpenLinger: cfg.OpenLinger,
	})
	if err != nil {
		return nil, fmt.Errorf("server: listen: %w", err)
	}

	r, err := reactor.New(1024)
	if err != nil {
		return nil, fmt.Errorf("server: reactor: %w", err)
	}

	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("server: eventfd: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		listenFD: listenFD,
		reactor:  r,
		pool:     workerpool.New(cfg.ThreadPoolNum, 2048),
		timers:   timer.New[int](nil),
		conns:    make(map[int]*connection.Connection, 1024),

		connInterest:      connInterest(connET),
		connWriteInterest: connWriteInterest(connET),
		listenInterest:    listenInterest(listenET),
		idleTimeout:       time.Duration(cfg.Timeout) * time.Millisecond,

		results: make(chan taskResult, 2048),
		wakeFD:  wakeFD,
	}

	if err := r.Register(listenFD, s.listenInterest); err != nil {
		return nil, fmt.Errorf("server: register listen fd: %w", err)
	}
	if err := r.Register(wakeFD, reactor.Readable); err != nil {
		return nil, fmt.Errorf("server: register wake fd: %w", err)
	}
	return s, nil
}

// Port returns the listening socket's bound port, useful when the config
// requests an ephemeral port (0) and the caller needs to know which one
// the kernel picked.
func (s *Server) Port() (int, error) {
	sa, err := unix.Getsockname(s.listenFD)
	if err != nil {
		return 0, fmt.Errorf("server: getsockname: %w", err)
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, fmt.Errorf("server: unexpected sockaddr type %T", sa)
	}
	return in4.Port, nil
}

func connInterest(edgeTriggered bool) reactor.Interest {
	i := reactor.Readable | reactor.PeerClosed | reactor.OneShot
	if edgeTriggered {
		i |= reactor.EdgeTriggered
	}
	return i
}

func connWriteInterest(edgeTriggered bool) reactor.Interest {
	i := reactor.Writable | reactor.PeerClosed | reactor.OneShot
	if edgeTriggered {
		i |= reactor.EdgeTriggered
	}
	return i
}

func listenInterest(edgeTriggered bool) reactor.Interest {
	i := reactor.Readable
	if edgeTriggered {
		i |= reactor.EdgeTriggered
	}
	return i
}

// Run drives the reactor loop until Close is called. It blocks.
func (s *Server) Run() error {
	logx.Infof("🚀 listening on %s:%d", s.cfg.ListenIP, s.cfg.ListenPort)
	logx.Infof("⚡ %d workers, idle timeout %s, src_dir %s", s.cfg.ThreadPoolNum, s.idleTimeout, s.cfg.SrcDir)

	for !s.closing.Load() {
		waitMs := s.timers.NextTick()
		if waitMs < 0 || waitMs > 1000 {
			waitMs = 1000
		}
		events, err := s.reactor.Wait(waitMs)
		if err != nil {
			logx.Errorf("reactor wait: %v", err)
			continue
		}
		for _, ev := range events {
			switch ev.FD {
			case s.listenFD:
				s.acceptAll()
			case s.wakeFD:
				s.drainResults()
			default:
				s.dispatch(ev)
			}
		}
	}
	s.shutdown()
	return nil
}

func (s *Server) acceptAll() {
	for {
		fd, _, _, err := netutil.Accept(s.listenFD)
		if err != nil {
			return
		}
		if err := s.reactor.Register(fd, s.connInterest); err != nil {
			logx.Warnf("register connection fd %d: %v", fd, err)
			continue
		}
		s.conns[fd] = connection.New(fd, s.cfg.SrcDir)
		s.timers.Add(fd, s.idleTimeout, func() { s.evict(fd) })
	}
}

// dispatch hands a ready connection to the worker pool. ev.Writable tells
// the worker which half of the one-shot registration fired — read-ready
// to keep parsing, or write-ready to resume a response that blocked on
// EAGAIN — since the reactor only ever arms one direction at a time.
func (s *Server) dispatch(ev reactor.Event) {
	conn, ok := s.conns[ev.FD]
	if !ok {
		return
	}
	if ev.PeerClosed() {
		s.closeConn(ev.FD)
		return
	}

	fd := ev.FD
	writable := ev.Writable()
	s.pool.Submit(func() {
		s.postResult(handleEvent(fd, conn, writable))
	})
}

// handleEvent runs on a worker goroutine with no access to the reactor,
// timer heap, or connection table — it only drives conn's own read/parse/
// write state machine and reports what happened.
func handleEvent(fd int, conn *connection.Connection, writable bool) taskResult {
	if writable {
		return tryWrite(fd, conn)
	}

	n, err := conn.Read()
	if err != nil && !isAgainOrClosed(err) {
		return taskResult{fd: fd, outcome: outcomeClose}
	}
	if n == 0 && err == nil {
		return taskResult{fd: fd, outcome: outcomeClose}
	}

	for {
		result, _ := conn.Process()
		switch result {
		case connection.NeedMoreData:
			return taskResult{fd: fd, outcome: outcomeRearmRead}
		case connection.Malformed:
			r := tryWrite(fd, conn)
			if r.outcome == outcomeRearmWrite {
				// A malformed response blocked mid-write; let it finish,
				// then close once the write completes.
				return r
			}
			return taskResult{fd: fd, outcome: outcomeClose}
		case connection.ResponseReady:
			r := tryWrite(fd, conn)
			if r.outcome != outcomeRearmRead {
				return r
			}
			if !conn.KeepAlive() {
				return taskResult{fd: fd, outcome: outcomeClose}
			}
			// Loop again: a pipelined second request may already be
			// sitting in the read buffer.
		}
	}
}

// tryWrite drains as much of the pending response as the socket currently
// accepts. On EAGAIN it reports outcomeRearmWrite instead of spinning, so
// the reactor rearms the connection for write-readiness and a later event
// resumes the same in-progress write. Once the response is fully written it
// reports outcomeRearmRead for a keep-alive response and outcomeClose
// otherwise.
func tryWrite(fd int, conn *connection.Connection) taskResult {
	for {
		done, err := conn.Write()
		if err != nil {
			if err == connection.ErrClosed {
				return taskResult{fd: fd, outcome: outcomeClose}
			}
			if isEAGAIN(err) {
				return taskResult{fd: fd, outcome: outcomeRearmWrite}
			}
			return taskResult{fd: fd, outcome: outcomeClose}
		}
		if done {
			if !conn.KeepAlive() {
				return taskResult{fd: fd, outcome: outcomeClose}
			}
			return taskResult{fd: fd, outcome: outcomeRearmRead}
		}
	}
}

// postResult hands r to the reactor goroutine and bumps the wake eventfd
// so a blocked epoll_wait returns promptly instead of waiting out the
// next timer tick.
func (s *Server) postResult(r taskResult) {
	s.results <- r
	s.wake()
}

func (s *Server) wake() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(s.wakeFD, buf[:]); err != nil && !isEAGAIN(err) {
		logx.Warnf("wake eventfd: %v", err)
	}
}

// drainResults runs on the reactor goroutine after the wake eventfd fires:
// clear its counter, then apply every taskResult currently queued.
func (s *Server) drainResults() {
	var buf [8]byte
	unix.Read(s.wakeFD, buf[:])

	for {
		select {
		case r := <-s.results:
			s.completeTask(r)
		default:
			return
		}
	}
}

// completeTask applies one taskResult's timer/epoll/table mutation. Only
// ever called from the reactor goroutine.
func (s *Server) completeTask(r taskResult) {
	if _, ok := s.conns[r.fd]; !ok {
		return
	}
	switch r.outcome {
	case outcomeClose:
		s.closeConn(r.fd)
	case outcomeRearmRead:
		s.timers.Adjust(r.fd, s.idleTimeout)
		s.rearm(r.fd, s.connInterest)
	case outcomeRearmWrite:
		s.timers.Adjust(r.fd, s.idleTimeout)
		s.rearm(r.fd, s.connWriteInterest)
	}
}

func (s *Server) rearm(fd int, interest reactor.Interest) {
	if err := s.reactor.Modify(fd, interest); err != nil {
		s.closeConn(fd)
	}
}

func (s *Server) evict(fd int) {
	s.closeConn(fd)
}

func (s *Server) closeConn(fd int) {
	conn, ok := s.conns[fd]
	if !ok {
		return
	}
	delete(s.conns, fd)
	s.timers.Remove(fd)
	s.reactor.Deregister(fd)
	conn.Close()
}

// Close signals the reactor goroutine to stop; it does not tear anything
// down itself. Close may be called from any goroutine, so it only flips
// the atomic flag and wakes the reactor — every mutation of the epoll
// set, timer heap, and connection table still happens on the reactor
// goroutine, inside shutdown, once Run's loop notices the flag.
func (s *Server) Close() error {
	if s.closing.CompareAndSwap(false, true) {
		s.wake()
	}
	return nil
}

// shutdown runs on the reactor goroutine once Run's loop exits: stop
// accepting new work, apply whatever taskResults workers already queued,
// close every live connection, and release the server's file descriptors.
func (s *Server) shutdown() {
	s.pool.Close()

drain:
	for {
		select {
		case r := <-s.results:
			s.completeTask(r)
		default:
			break drain
		}
	}

	for fd := range s.conns {
		s.closeConn(fd)
	}
	s.reactor.Close()
	unix.Close(s.wakeFD)
	unix.Close(s.listenFD)
}

func isAgainOrClosed(err error) bool {
	return err == connection.ErrClosed || isEAGAIN(err)
}
