// File: server/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options set the four user callbacks TcpServer wires onto
// every connection it creates (the close callback is always wired by
// TcpServer itself), following a functional-options idiom
// rather than exposing a struct of callback fields.

package server

import (
	"github.com/momentics/tcpreactor/tcp"
)

// Option configures a TcpServer at construction time.
type Option func(*TcpServer)

// WithConnectionCallback sets the callback fired on Connected and on
// the transition to Disconnected.
func WithConnectionCallback(cb tcp.ConnectionCallback) Option {
	return func(s *TcpServer) { s.connectionCallback = cb }
}

// WithMessageCallback sets the callback fired whenever new readable
// data arrives on a connection.
func WithMessageCallback(cb tcp.MessageCallback) Option {
	return func(s *TcpServer) { s.messageCallback = cb }
}

// WithWriteCompleteCallback sets the callback fired when a connection's
// output buffer drains to empty.
func WithWriteCompleteCallback(cb tcp.WriteCompleteCallback) Option {
	return func(s *TcpServer) { s.writeCompleteCallback = cb }
}

// WithHighWaterMarkCallback sets the callback fired on the upward
// crossing of Config.HighWaterMark. It sets only the callback; the
// threshold still comes from Config.
func WithHighWaterMarkCallback(cb tcp.HighWaterMarkCallback) Option {
	return func(s *TcpServer) { s.highWaterMarkCallback = cb }
}
