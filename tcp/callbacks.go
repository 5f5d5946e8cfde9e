// File: tcp/callbacks.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"net"
	"time"

	"github.com/momentics/tcpreactor/buffer"
)

// ConnectionCallback fires on Connected and again on the transition to
// Disconnected.
type ConnectionCallback func(conn *Connection)

// MessageCallback fires whenever new readable data has arrived on
// conn's input buffer. The handler is responsible for consuming bytes
// from in via in.Retrieve; unconsumed bytes remain for the next call.
type MessageCallback func(conn *Connection, in *buffer.Buffer, receiveTime time.Time)

// WriteCompleteCallback fires when the output buffer transitions from
// non-empty to empty.
type WriteCompleteCallback func(conn *Connection)

// HighWaterMarkCallback fires on the upward crossing of the threshold
// set via SetHighWaterMarkCallback. Crossing back down is not signaled;
// WriteCompleteCallback fills that role.
type HighWaterMarkCallback func(conn *Connection, currentOutputSize int)

// CloseCallback fires once, after the connection callback has already
// observed the Disconnected transition. The server layer uses it to
// deregister the connection; it is always wired by NewConnection's
// caller and never left unset.
type CloseCallback func(conn *Connection)

// NewConnectionCallback is the Acceptor's sole output: a freshly
// accepted, not-yet-registered socket and its peer address.
type NewConnectionCallback func(connFd int, peer net.Addr)
