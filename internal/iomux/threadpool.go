// File: internal/iomux/threadpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventLoopThreadPool owns N sub-reactor threads, each running its own
// EventLoop, and hands out loops to new connections round-robin. With
// zero worker threads requested it collapses onto the base loop, so a
// single-threaded server pays no extra goroutine cost.

package iomux

import (
	"sync/atomic"

	"github.com/momentics/tcpreactor/affinity"
	"github.com/momentics/tcpreactor/internal/logging"
)

// EventLoopThreadPool manages the sub-reactor threads for a TcpServer.
type EventLoopThreadPool struct {
	baseLoop *EventLoop
	name     string

	numThreads int
	// WorkerCPUs, if non-nil, pins worker i to WorkerCPUs[i] via
	// affinity.SetAffinity; a short slice leaves the remaining workers unpinned.
	WorkerCPUs []int

	threads []*Thread
	loops   []*EventLoop

	next atomic.Uint64

	started bool
}

// NewEventLoopThreadPool creates a pool of numThreads sub-reactors tied
// to baseLoop, which always owns the Acceptor and, when numThreads is
// zero, every established connection as well.
func NewEventLoopThreadPool(baseLoop *EventLoop, name string, numThreads int) *EventLoopThreadPool {
	return &EventLoopThreadPool{
		baseLoop:   baseLoop,
		name:       name,
		numThreads: numThreads,
	}
}

// Start spawns the pool's threads and blocks until every sub-loop has
// published its EventLoop, so GetNextLoop never races a not-yet-running
// loop.
func (p *EventLoopThreadPool) Start() {
	if p.started {
		return
	}
	p.started = true

	if p.numThreads == 0 {
		return
	}

	ready := make(chan *EventLoop, p.numThreads)
	p.threads = make([]*Thread, p.numThreads)
	p.loops = make([]*EventLoop, 0, p.numThreads)

	for i := 0; i < p.numThreads; i++ {
		idx := i
		th := NewThread(func() {
			loop := NewEventLoop()
			if idx < len(p.WorkerCPUs) {
				if err := affinity.SetAffinity(p.WorkerCPUs[idx]); err != nil {
					logging.Default().Warnf("iomux: pin worker %d to cpu %d: %v", idx, p.WorkerCPUs[idx], err)
				}
			}
			ready <- loop
			loop.Loop()
			_ = loop.Close()
		}, p.name+"-worker")
		p.threads[idx] = th
		th.Start()
	}

	for i := 0; i < p.numThreads; i++ {
		p.loops = append(p.loops, <-ready)
	}
}

// GetNextLoop returns the next sub-reactor loop in round-robin order,
// or the base loop if the pool has zero worker threads.
func (p *EventLoopThreadPool) GetNextLoop() *EventLoop {
	if len(p.loops) == 0 {
		return p.baseLoop
	}
	i := p.next.Add(1) - 1
	return p.loops[i%uint64(len(p.loops))]
}

// AllLoops returns every sub-reactor loop, or just the base loop if the
// pool was started with zero worker threads.
func (p *EventLoopThreadPool) AllLoops() []*EventLoop {
	if len(p.loops) == 0 {
		return []*EventLoop{p.baseLoop}
	}
	return p.loops
}

// Stop quits every sub-reactor loop and joins its thread.
func (p *EventLoopThreadPool) Stop() {
	for _, l := range p.loops {
		l.Quit()
	}
	for _, t := range p.threads {
		t.Join()
	}
}
