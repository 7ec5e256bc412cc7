//go:build linux

package server

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isEAGAIN(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
