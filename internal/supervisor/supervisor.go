// Package supervisor tracks named concurrent units and their lifecycle.
// Status is always derived from the underlying goroutine state on demand,
// never cached, so the reported state cannot drift from reality.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"basisarb/internal/logger"
)

// Status describes the observed state of a tracked unit.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusActive    Status = "active"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

// RunFunc is the body of a tracked unit. It must return promptly once its
// context is cancelled.
type RunFunc func(ctx context.Context) error

type task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func (t *task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *task) result() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Supervisor tracks named concurrent units. Names are unique for the life of
// the process so a log line or an error always identifies one unit.
type Supervisor struct {
	log logger.LoggerInterface

	// Bounded waits during cancellation. Exceeding them is logged, never
	// raised: cancellation is best-effort.
	ackWait  time.Duration
	termWait time.Duration

	mu    sync.Mutex
	tasks map[string]*task
}

// New creates an empty Supervisor.
func New(log logger.LoggerInterface) *Supervisor {
	return &Supervisor{
		log:      log,
		ackWait:  2 * time.Second,
		termWait: 5 * time.Second,
		tasks:    make(map[string]*task),
	}
}

// Add registers run under name and starts it immediately. The unit receives
// a context derived from ctx that Cancel and CancelAll can cancel
// independently. Adding a duplicate name fails.
func (s *Supervisor) Add(ctx context.Context, name string, run RunFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("supervisor: unit %q already tracked", name)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.tasks[name] = t

	go func() {
		err := run(taskCtx)
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)
	}()

	return nil
}

// Status derives the unit's state on demand.
func (s *Supervisor) Status(name string) Status {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()

	if !ok {
		return StatusUnknown
	}
	if !t.finished() {
		return StatusActive
	}

	err := t.result()
	switch {
	case err == nil:
		return StatusDone
	case errors.Is(err, context.Canceled):
		return StatusCancelled
	default:
		return StatusError
	}
}

// Err returns the terminal error of a finished unit, nil otherwise.
func (s *Supervisor) Err(name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()

	if !ok || !t.finished() {
		return nil
	}
	return t.result()
}

// Names returns the names of all tracked units.
func (s *Supervisor) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	return names
}

// Cancel requests cancellation of the named unit and waits, bounded, for it
// to terminate. Cancelling an unknown or finished unit is a no-op, so the
// call is idempotent. A unit that outlives both waits is logged and left
// behind; it no longer counts against the name space.
func (s *Supervisor) Cancel(ctx context.Context, name string) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if ok {
		delete(s.tasks, name)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	t.cancel()

	select {
	case <-t.done:
		return
	case <-time.After(s.ackWait):
	}

	s.log.Warn(ctx, "unit slow to acknowledge cancellation", "unit", name)

	select {
	case <-t.done:
	case <-time.After(s.termWait):
		s.log.Warn(ctx, "unit did not terminate within bounds, abandoning", "unit", name)
	}
}

// CancelAll cancels every tracked unit except the named one (usually the
// caller's own unit). All outcomes are collected; none are propagated.
func (s *Supervisor) CancelAll(ctx context.Context, except string) {
	s.mu.Lock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		if name != except {
			names = append(names, name)
		}
	}
	s.mu.Unlock()

	for _, name := range names {
		err := s.Err(name)
		s.Cancel(ctx, name)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn(ctx, "unit finished with error before shutdown", "unit", name, "error", err)
		}
	}
}
