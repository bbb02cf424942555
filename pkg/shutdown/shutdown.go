// Package shutdown coordinates graceful teardown of the server's
// listeners and stores.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Manager collects shutdown hooks and runs them in reverse registration
// order when a termination signal arrives.
type Manager struct {
	funcs   []func(context.Context) error
	mu      sync.Mutex
	timeout time.Duration
	done    chan struct{}
	once    sync.Once
}

// New creates a shutdown manager with the given per-shutdown timeout.
func New(timeout time.Duration) *Manager {
	return &Manager{
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Register adds a shutdown hook. Hooks run LIFO, so register in
// dependency order (store first, listener last).
func (m *Manager) Register(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, fn)
}

// Wait blocks until SIGINT or SIGTERM.
func (m *Manager) Wait() os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	m.once.Do(func() { close(m.done) })
	return sig
}

// Done is closed once shutdown has been initiated.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Shutdown runs the registered hooks and returns the errors they
// produced, in execution order.
func (m *Manager) Shutdown() []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for i := len(m.funcs) - 1; i >= 0; i-- {
		if err := m.funcs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
