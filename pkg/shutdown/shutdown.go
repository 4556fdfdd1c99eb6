package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Manager runs a set of named cleanup functions, in reverse
// registration order, against a shared deadline. It has no opinion on
// when to stop the process — in this tree that decision belongs to
// Registry.BindFates, which the Supervisor Loop polls cooperatively —
// Manager only owns what happens once that decision has been made.
type Manager struct {
	mu      sync.Mutex
	funcs   []namedFunc
	timeout time.Duration
}

type namedFunc struct {
	name string
	fn   func(context.Context) error
}

// New creates a shutdown manager that gives all registered funcs up
// to timeout, combined, to finish.
func New(timeout time.Duration) *Manager {
	return &Manager{timeout: timeout}
}

// Register adds a cleanup function tagged with name, used to
// attribute errors from Shutdown. Functions run in reverse
// registration order (LIFO): the last thing brought up is the first
// thing torn down.
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, namedFunc{name: name, fn: fn})
}

// Shutdown runs every registered function LIFO within one shared
// timeout and returns their combined error, if any. A slow or failing
// function does not stop the rest from running.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for i := len(m.funcs) - 1; i >= 0; i-- {
		nf := m.funcs[i]
		if err := nf.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", nf.name, err))
		}
	}
	return errors.Join(errs...)
}

// StopHTTPServer adapts an http.Server-shaped Shutdown method into a
// Manager cleanup function.
func StopHTTPServer(server interface{ Shutdown(context.Context) error }) func(context.Context) error {
	return server.Shutdown
}
