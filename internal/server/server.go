package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/leruetkins/bold-nfs/internal/logger"
	"github.com/leruetkins/bold-nfs/internal/metrics"
	"github.com/leruetkins/bold-nfs/internal/nfs4/handlers"
	"github.com/leruetkins/bold-nfs/internal/nfs4/state"
)

// Server owns the TCP listener and the lifecycle of every connection
// accepted from it, grounded on the teacher's NFSAdapter.Serve/Stop pair.
type Server struct {
	config  Config
	manager *state.Manager
	metrics *metrics.Recorder

	mu       sync.RWMutex
	listener net.Listener

	connSemaphore chan struct{}
	connCount     atomic.Int32
	activeConns   sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}
	cancelReqs   context.CancelFunc
	requestCtx   context.Context
}

// New constructs a Server bound to mgr for state and rec for metrics. rec
// may be nil; every metrics call is nil-safe.
func New(cfg Config, mgr *state.Manager, rec *metrics.Recorder) *Server {
	handlers.SetMetrics(rec)
	s := &Server{
		config:   cfg,
		manager:  mgr,
		metrics:  rec,
		shutdown: make(chan struct{}),
	}
	if cfg.MaxConnections > 0 {
		s.connSemaphore = make(chan struct{}, cfg.MaxConnections)
	}
	return s
}

// Serve opens the listener and accepts connections until ctx is cancelled
// or Stop is called. It blocks until the accept loop exits.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.requestCtx, s.cancelReqs = context.WithCancel(context.Background())
	s.mu.Unlock()

	logger.Get().Info("nfs4d listening", logger.KeyPath, listener.Addr().String())

	go func() {
		<-ctx.Done()
		s.initiateShutdown()
	}()

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.waitForDrain()
			}
		}

		conn, err := listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			select {
			case <-s.shutdown:
				return s.waitForDrain()
			default:
				logger.Get().Debug("accept error", logger.KeyError, err.Error())
				continue
			}
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)
		c := newConnection(s, conn)

		go func() {
			defer func() {
				s.activeConns.Done()
				s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}
			}()
			c.serve(s.requestCtx)
		}()
	}
}

// Stop begins graceful shutdown: the listener stops accepting, in-flight
// requests are cancelled via the shared request context, and Stop blocks
// until every accepted connection has finished (or ctx expires first).
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		s.mu.RLock()
		l := s.listener
		cancel := s.cancelReqs
		s.mu.RUnlock()
		if l != nil {
			_ = l.Close()
		}
		if cancel != nil {
			cancel()
		}
	})
}

func (s *Server) waitForDrain() error {
	s.activeConns.Wait()
	return nil
}

// ActiveConnections reports the current accepted-connection count, for
// status logging and --metrics-addr exposition.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}
