// File: pool/default.go
// Author: momentics <momentics@gmail.com>
//
// Process-wide default BufferPoolManager, lazily created, for callers
// that have no manager of their own (client.RecvN uses it). Each
// TcpServer creates its own manager and does not use this one.

package pool

import (
	"sync"

	"github.com/momentics/tcpreactor/api"
)

var (
	defaultOnce sync.Once
	defaultMgr  *BufferPoolManager
)

// DefaultManager returns the process-wide BufferPoolManager.
func DefaultManager() *BufferPoolManager {
	defaultOnce.Do(func() {
		defaultMgr = NewBufferPoolManager()
	})
	return defaultMgr
}

// DefaultPool is a shortcut to fetch a pool from the default manager.
func DefaultPool(numaPreferred int) api.BufferPool {
	return DefaultManager().GetPool(numaPreferred)
}
