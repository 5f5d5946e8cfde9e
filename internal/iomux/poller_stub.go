//go:build !linux && !windows
// +build !linux,!windows

// File: internal/iomux/poller_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub poller for platforms with neither epoll nor WSAPoll support.

package iomux

import "errors"

func newPoller() (poller, error) {
	return nil, errors.New("iomux: this platform is not supported")
}
