//go:build !unix

package protocol

import "net"

func drainSocket(net.Conn) {}
