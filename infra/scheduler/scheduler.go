// Package scheduler runs deferred tasks after a delay without blocking the caller.
//
// Tasks cannot be withdrawn once scheduled. Stop waits for every pending and running
// task, bounded by the caller's context.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

var ErrStopped = errors.New("scheduler: stopped")

// Task is executed once its delay elapses. The context is cancelled only when a stop
// deadline forces the scheduler down.
type Task func(ctx context.Context)

// Scheduler defines the deferred execution contract used by the dispatch engine.
type Scheduler interface {
	Schedule(delay time.Duration, task Task) error
	Pending() int64
	Stop(ctx context.Context) error
}

// TimerScheduler backs every task with its own runtime timer.
type TimerScheduler struct {
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	pending atomic.Int64
}

func New(logger *slog.Logger) *TimerScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerScheduler{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule arranges for task to run after delay. A zero or negative delay runs the task
// on its own goroutine immediately.
func (s *TimerScheduler) Schedule(delay time.Duration, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}

	s.wg.Add(1)
	s.pending.Add(1)

	if delay <= 0 {
		go s.run(task)
		return nil
	}
	time.AfterFunc(delay, func() { s.run(task) })
	return nil
}

func (s *TimerScheduler) run(task Task) {
	defer s.wg.Done()
	defer s.pending.Add(-1)

	// [PANIC_RECOVERY] A failing task must not take the process down with it.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("DEFERRED_TASK_PANIC",
				"err", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	task(s.ctx)
}

// Pending reports tasks that are scheduled or running.
func (s *TimerScheduler) Pending() int64 { return s.pending.Load() }

// Stop refuses new tasks and waits for outstanding ones. When ctx expires first, the
// task context is cancelled and ctx.Err() is returned.
func (s *TimerScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.logger.Warn("SCHEDULER_STOP_TIMEOUT", "pending", s.Pending())
		s.cancel()
		return ctx.Err()
	}
}
