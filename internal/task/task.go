// Package task runs the named background goroutines owned by a transport,
// such as the reader that frames incoming bytes into messages.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-scpi/logger"
)

// ErrStopped is returned when starting a task on a stopped Manager.
var ErrStopped = errors.New("task: manager already stopped")

const startTimeout = 5 * time.Second

// Func is one iteration of a task loop. It returns true to keep running,
// false to end the goroutine.
type Func func(ctx context.Context) bool

// ExitFunc is called once when a task goroutine exits, whatever the reason.
type ExitFunc func()

// Manager manages the lifecycle of the goroutines started through it.
//
// Every task shares the manager context; Stop cancels it and Wait blocks
// until all task goroutines have returned. A stopped Manager can not be
// restarted, transports create a new one per open.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.Mutex // serializes Start against Stop
}

// NewManager creates a Manager whose tasks end when ctx is done or Stop is called.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by all tasks.
func (mgr *Manager) Context() context.Context {
	return mgr.ctx
}

// Start runs taskFunc in a loop on a new goroutine until it returns false or
// the manager context is done. onExit, when not nil, runs after the loop ends.
//
// Start returns once the goroutine is running.
func (mgr *Manager) Start(name string, taskFunc Func, onExit ExitFunc) error {
	mgr.mu.Lock()
	if mgr.ctx.Err() != nil {
		mgr.mu.Unlock()
		return fmt.Errorf("%w: start %s", ErrStopped, name)
	}
	mgr.wg.Add(1)
	mgr.mu.Unlock()

	mgr.logger.Debug("task: start", "name", name)

	started := make(chan struct{})
	go func() {
		defer mgr.wg.Done()

		mgr.count.Add(1)
		close(started)

		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug("task: terminated", "name", name, "task_count", mgr.TaskCount())
		}()

		if onExit != nil {
			defer mgr.callWithRecover(name, onExit)
		}

		mgr.runLoop(name, taskFunc)
	}()

	select {
	case <-started:
		return nil
	case <-time.After(startTimeout):
		return fmt.Errorf("task: timeout waiting for %s to start", name)
	}
}

// Stop signals all running tasks to end.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	mgr.cancel()
}

// Wait blocks until every task goroutine has returned.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()
}

// TaskCount returns the number of currently running goroutines.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) runLoop(name string, taskFunc Func) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("task: panic in task loop", "name", name, "panic", r)
		}
	}()

	for {
		select {
		case <-mgr.ctx.Done():
			return
		default:
			if !taskFunc(mgr.ctx) {
				return
			}
		}
	}
}

func (mgr *Manager) callWithRecover(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("task: panic in exit func", "name", name, "panic", r)
		}
	}()

	fn()
}
