// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TcpServer wires Acceptor + EventLoopThreadPool + connection registry +
// Control together, following the classic reactor server split of
// accept loop -> worker pool -> per-connection handler, and using a
// functional-options server construction idiom.

package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/momentics/tcpreactor/api"
	"github.com/momentics/tcpreactor/control"
	"github.com/momentics/tcpreactor/internal/iomux"
	"github.com/momentics/tcpreactor/internal/logging"
	"github.com/momentics/tcpreactor/netutil"
	"github.com/momentics/tcpreactor/pool"
	"github.com/momentics/tcpreactor/tcp"
)

func dropConnection(fd int) {
	_ = netutil.CloseFD(fd)
}

// Control bundles the hot-reloadable config store and the metrics
// registry a running TcpServer exposes read-only via TcpServer.Control.
type Control struct {
	Config  *control.ConfigStore
	Metrics *control.MetricsRegistry
	Debug   api.Debug
}

// TcpServer accepts connections on cfg.ListenAddr and dispatches them
// across a pool of worker EventLoops.
type TcpServer struct {
	cfg Config

	connectionCallback    tcp.ConnectionCallback
	messageCallback       tcp.MessageCallback
	writeCompleteCallback tcp.WriteCompleteCallback
	highWaterMarkCallback tcp.HighWaterMarkCallback

	baseLoop *iomux.EventLoop
	pool     *iomux.EventLoopThreadPool
	acceptor *tcp.Acceptor
	bufPool  *pool.BufferPoolManager

	control Control

	mu          sync.Mutex
	connections map[string]*tcp.Connection
	nextConnID  uint64

	started  chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewTcpServer validates cfg and constructs a TcpServer. The listening
// socket and event loops are not created until Start.
func NewTcpServer(cfg Config, opts ...Option) (*TcpServer, error) {
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("server: ListenAddr is required: %w", api.ErrInvalidArgument)
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = 128
	}
	if cfg.HighWaterMark <= 0 {
		cfg.HighWaterMark = 64 << 20
	}

	s := &TcpServer{
		cfg:         cfg,
		bufPool:     pool.NewBufferPoolManager(),
		connections: make(map[string]*tcp.Connection),
		started:     make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	s.control = Control{
		Config:  control.NewConfigStore(),
		Metrics: control.NewMetricsRegistry(),
		Debug:   control.NewDebugProbes(),
	}
	s.control.Config.SetConfig(map[string]any{"highWaterMark": cfg.HighWaterMark})
	control.RegisterPlatformProbes(s.control.Debug)
	s.control.Debug.RegisterProbe("server.connections", func() any {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.connections)
	})
	s.control.Debug.RegisterProbe("server.metrics", func() any {
		return s.control.Metrics.GetSnapshot()
	})

	for _, opt := range opts {
		opt(s)
	}

	s.control.Config.OnReload(func() {
		snap := s.control.Config.GetSnapshot()
		hwm, ok := snap["highWaterMark"].(int)
		if !ok {
			return
		}
		s.broadcastHighWaterMark(hwm)
	})

	return s, nil
}

// Control exposes the server's config store, metrics registry, and
// debug probes.
func (s *TcpServer) Control() *Control { return &s.control }

// Addr returns the bound listen address. Valid only after Start.
func (s *TcpServer) Addr() net.Addr {
	if s.acceptor == nil {
		return nil
	}
	return s.acceptor.Addr()
}

// Start creates the accepting EventLoop and worker pool, begins
// accepting connections, and blocks the calling goroutine running the
// accepting loop until Stop is called. Start must be called from a
// goroutine that will not be reused for anything else — it pins the OS
// thread for the lifetime of the server.
func (s *TcpServer) Start() error {
	baseLoop := iomux.NewEventLoop()
	baseLoop.SetPollTimeout(s.cfg.pollTimeout())
	s.wireLoopMetrics(baseLoop)
	s.baseLoop = baseLoop

	acceptor, err := tcp.NewAcceptor(baseLoop, s.cfg.ListenAddr, s.cfg.Backlog, s.cfg.ReuseAddr, s.cfg.ReusePort)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	acceptor.NewConnectionCallback = s.newConnection
	s.acceptor = acceptor

	s.pool = iomux.NewEventLoopThreadPool(baseLoop, "worker", s.cfg.NumEventLoopThreads)
	s.pool.WorkerCPUs = s.cfg.WorkerCPUs
	s.pool.Start()
	for _, wl := range s.pool.AllLoops() {
		s.wireLoopMetrics(wl)
	}

	acceptor.Listen()
	close(s.started)

	logging.Default().Infof("server: listening on %s", acceptor.Addr())
	baseLoop.Loop()
	_ = baseLoop.Close()

	close(s.stopped)
	return nil
}

// Stop initiates graceful shutdown: stops accepting, quits every loop,
// and waits for them to return or for ctx to expire.
func (s *TcpServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		<-s.started
		s.baseLoop.RunInLoop(func() { s.acceptor.Close() })

		s.mu.Lock()
		conns := make([]*tcp.Connection, 0, len(s.connections))
		for _, c := range s.connections {
			conns = append(conns, c)
		}
		s.mu.Unlock()
		for _, c := range conns {
			c.Shutdown()
		}

		s.pool.Stop()
		s.baseLoop.Quit()
	})

	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *TcpServer) wireLoopMetrics(loop *iomux.EventLoop) {
	loop.SetMetricsHooks(
		func() { s.control.Metrics.Incr("wakeups.total", 1) },
		func() { s.control.Metrics.Incr("eventloop.deferred_tasks.total", 1) },
	)
}

func (s *TcpServer) newConnection(connFd int, peer net.Addr) {
	if s.cfg.MaxConnections > 0 {
		s.mu.Lock()
		full := len(s.connections) >= s.cfg.MaxConnections
		s.mu.Unlock()
		if full {
			logging.Default().Warnf("server: %v, dropping %v", api.ErrResourceExhausted, peer)
			dropConnection(connFd)
			return
		}
	}

	s.mu.Lock()
	s.nextConnID++
	name := fmt.Sprintf("conn-%d", s.nextConnID)
	s.mu.Unlock()

	loop := s.pool.GetNextLoop()
	loop.RunInLoop(func() {
		laddr := s.acceptor.Addr()
		numa := s.cfg.NUMAPreferred
		bufPool := s.bufPool.GetPool(numa)

		conn := tcp.NewConnection(loop, name, connFd, laddr, peer, bufPool, numa)
		conn.SetConnectionCallback(s.onConnectionChanged)
		conn.SetMessageCallback(s.messageCallback)
		conn.SetWriteCompleteCallback(s.writeCompleteCallback)
		hwm := s.cfg.HighWaterMark
		if snap := s.control.Config.GetSnapshot(); snap != nil {
			if v, ok := snap["highWaterMark"].(int); ok {
				hwm = v
			}
		}
		conn.SetHighWaterMarkCallback(s.highWaterMarkCallback, hwm)
		conn.SetCloseCallback(s.removeConnection)
		conn.SetByteMetricsHooks(
			func(n int) { s.control.Metrics.Incr("bytes.read", int64(n)) },
			func(n int) { s.control.Metrics.Incr("bytes.written", int64(n)) },
		)

		s.baseLoop.RunInLoop(func() {
			s.mu.Lock()
			s.connections[name] = conn
			s.mu.Unlock()
		})
		s.control.Metrics.Incr("connections.active", 1)
		s.control.Metrics.Incr("connections.total", 1)

		conn.ConnectEstablished()
	})
}

func (s *TcpServer) onConnectionChanged(conn *tcp.Connection) {
	if s.connectionCallback != nil {
		s.connectionCallback(conn)
	}
}

func (s *TcpServer) removeConnection(conn *tcp.Connection) {
	s.baseLoop.RunInLoop(func() {
		s.mu.Lock()
		delete(s.connections, conn.Name())
		s.mu.Unlock()
		s.control.Metrics.Incr("connections.active", -1)
		conn.Loop().RunInLoop(conn.ConnectDestroyed)
	})
}

func (s *TcpServer) broadcastHighWaterMark(hwm int) {
	s.mu.Lock()
	conns := make([]*tcp.Connection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Loop().RunInLoop(func() { c.SetHighWaterMarkCallback(s.highWaterMarkCallback, hwm) })
	}
}
