//go:build linux

// Package netutil builds and configures the raw, non-blocking IPv4 TCP
// sockets the reactor watches directly — no net.Listener/net.Conn in the
// hot path, since the reactor needs bare fds to hand to epoll and
// writev.
package netutil

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// ListenConfig carries the socket options applied before bind+listen.
type ListenConfig struct {
	IP         string
	Port       int
	Backlog    int
	OpenLinger bool
}

// Listen creates, configures, binds, and listens on a non-blocking IPv4
// stream socket, returning its raw fd.
func Listen(cfg ListenConfig) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("netutil: socket: %w", err)
	}

	linger := unix.Linger{Onoff: 0, Linger: 0}
	if cfg.OpenLinger {
		linger.Onoff = 1
		linger.Linger = 1
	}
	if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &linger); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: SO_LINGER: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: SO_REUSEADDR: %w", err)
	}

	ip := net.ParseIP(cfg.IP).To4()
	if ip == nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: invalid IPv4 address %q", cfg.IP)
	}
	addr := &unix.SockaddrInet4{Port: cfg.Port}
	copy(addr.Addr[:], ip)

	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: bind %s:%d: %w", cfg.IP, cfg.Port, err)
	}

	backlog := cfg.Backlog
	if backlog <= 0 {
		backlog = 6
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: listen %s:%d: %w", cfg.IP, cfg.Port, err)
	}

	if err := SetNonblocking(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}

	return fd, nil
}

// SetNonblocking sets O_NONBLOCK on fd.
func SetNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}

// Accept accepts one pending connection off the listening fd, configures it
// non-blocking with TCP_NODELAY, and returns its fd and IPv4 peer address.
// Returns unix.EAGAIN when there is nothing pending.
func Accept(listenFD int) (int, [4]byte, uint16, error) {
	nfd, sa, err := unix.Accept(listenFD)
	if err != nil {
		return -1, [4]byte{}, 0, err
	}
	if err := SetNonblocking(nfd); err != nil {
		unix.Close(nfd)
		return -1, [4]byte{}, 0, err
	}
	_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		unix.Close(nfd)
		return -1, [4]byte{}, 0, fmt.Errorf("netutil: accept returned non-IPv4 address")
	}
	return nfd, in4.Addr, uint16(in4.Port), nil
}
