//go:build linux

package httpengine

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// fastOpenControl enables TCP_FASTOPEN_CONNECT on the socket before the
// connect, letting the kernel carry data in the SYN when the peer supports
// it.
func fastOpenControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_FASTOPEN_CONNECT, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
