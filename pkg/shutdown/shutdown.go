package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/psantana5/toolshim/pkg/logging"
)

// Manager handles graceful shutdown
type Manager struct {
	shutdownFuncs []namedFunc
	mu            sync.Mutex
	timeout       time.Duration
	signals       chan os.Signal
}

type namedFunc struct {
	name string
	fn   func(context.Context) error
}

// New creates a new shutdown manager
func New(timeout time.Duration) *Manager {
	return &Manager{
		timeout: timeout,
		signals: make(chan os.Signal, 1),
	}
}

// Register adds a shutdown function.
// Functions are called in reverse order (LIFO).
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownFuncs = append(m.shutdownFuncs, namedFunc{name: name, fn: fn})
}

// Wait blocks until SIGINT/SIGTERM or ctx is done, then runs Shutdown.
func (m *Manager) Wait(ctx context.Context) error {
	signal.Notify(m.signals, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(m.signals)

	select {
	case sig := <-m.signals:
		logging.Default().Info("Received signal, shutting down", map[string]interface{}{"signal": sig.String()})
		return m.Shutdown()
	case <-ctx.Done():
		m.Shutdown()
		return ctx.Err()
	}
}

// Shutdown executes all registered shutdown functions and returns the first
// error. Every function runs even if an earlier one failed.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var first error
	for i := len(m.shutdownFuncs) - 1; i >= 0; i-- {
		f := m.shutdownFuncs[i]
		if err := f.fn(ctx); err != nil {
			logging.Default().Warn("Shutdown step failed", map[string]interface{}{"step": f.name, "error": err.Error()})
			if first == nil {
				first = fmt.Errorf("%s: %w", f.name, err)
			}
		}
	}
	m.shutdownFuncs = nil
	return first
}

// StopHTTPServer creates a shutdown function for http.Server
func StopHTTPServer(server interface{ Shutdown(context.Context) error }) func(context.Context) error {
	return func(ctx context.Context) error {
		return server.Shutdown(ctx)
	}
}
