// Package server coordinates graceful shutdown of long-lived
// components.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownManager closes registered resources in LIFO order when a
// termination signal arrives or Shutdown is called.
type ShutdownManager struct {
	timeout time.Duration
	logger  *zap.Logger

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	mu      sync.Mutex
	closers []namedCloser
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// NewShutdownManager creates a shutdown manager. timeout bounds the
// whole shutdown sequence; zero means 30 seconds.
func NewShutdownManager(timeout time.Duration, logger *zap.Logger) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		timeout:    timeout,
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}
}

// Register adds a closer to be called during shutdown, LIFO.
func (sm *ShutdownManager) Register(name string, closer io.Closer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.closers = append(sm.closers, namedCloser{name: name, closer: closer})
}

// RegisterFunc adds a shutdown function.
func (sm *ShutdownManager) RegisterFunc(name string, fn func() error) {
	sm.Register(name, closerFunc(fn))
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// ListenForSignals blocks until SIGTERM/SIGINT or context
// cancellation, then runs the shutdown sequence.
func (sm *ShutdownManager) ListenForSignals(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return sm.Shutdown(fmt.Sprintf("received signal %v", sig))
	case <-ctx.Done():
		return sm.Shutdown("context cancelled")
	case <-sm.shutdownCh:
		return nil
	}
}

// Shutdown closes every registered resource in reverse registration
// order. Safe to call more than once; later calls are no-ops.
func (sm *ShutdownManager) Shutdown(reason string) error {
	var shutdownErr error

	sm.shutdownOnce.Do(func() {
		close(sm.shutdownCh)
		sm.logger.Info("shutting down", zap.String("reason", reason))

		deadline := time.Now().Add(sm.timeout)

		sm.mu.Lock()
		closers := sm.closers
		sm.mu.Unlock()

		for i := len(closers) - 1; i >= 0; i-- {
			if time.Now().After(deadline) {
				shutdownErr = fmt.Errorf("shutdown timeout before closing %s", closers[i].name)
				sm.logger.Error("shutdown timed out", zap.String("pending", closers[i].name))
				return
			}
			if err := closers[i].closer.Close(); err != nil {
				sm.logger.Warn("close failed",
					zap.String("component", closers[i].name),
					zap.Error(err))
				if shutdownErr == nil {
					shutdownErr = fmt.Errorf("close %s: %w", closers[i].name, err)
				}
			}
		}

		sm.logger.Info("shutdown complete")
	})

	return shutdownErr
}
