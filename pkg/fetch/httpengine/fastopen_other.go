//go:build !linux

package httpengine

import "syscall"

// TCP fast open is only wired on linux; elsewhere the preference is
// accepted and connects normally.
func fastOpenControl(network, address string, c syscall.RawConn) error {
	return nil
}
