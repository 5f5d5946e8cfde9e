// File: netutil/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral socket helpers used by Acceptor and TcpConnection,
// generalized from a plain echo server's raw-fd socket plumbing into
// the full listen/accept/option surface a reactor core needs.

package netutil

import (
	"fmt"
	"net"
)

// ParseListenAddr resolves a "host:port" address into a *net.TCPAddr.
// A port of 0 (ephemeral) stays 0 here; the bound port is known only
// after the socket is bound.
func ParseListenAddr(addr string) (*net.TCPAddr, error) {
	a, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("netutil: resolve %q: %w", addr, err)
	}
	return a, nil
}
