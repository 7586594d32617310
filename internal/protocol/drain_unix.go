//go:build unix

package protocol

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// drainSocket discards whatever the kernel has already queued for conn
// without waiting for more. Connections that expose no descriptor are left
// alone.
func drainSocket(conn net.Conn) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return
	}

	var buf [MaxLineBytes]byte
	for {
		var n int
		var rerr error
		err := rc.Read(func(fd uintptr) bool {
			n, rerr = unix.Read(int(fd), buf[:])
			// Never park: an empty queue (EAGAIN) ends the drain.
			return true
		})
		if err != nil || rerr != nil || n < len(buf) {
			return
		}
	}
}
