// Package scheduler runs the periodic telemetry tasks: health, load
// and overload sweeps over the node pool.
//
// Each task ticks on its own interval, is time-boxed per run and is
// failure-isolated: a panic or error in one task never cancels the
// others, and a slow run never blocks request handling.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wirepool/wirepool-go/internal/telemetry/logger"
)

// Task is one periodic unit of work.
type Task struct {
	// Name identifies the task in logs and metrics.
	Name string

	// Interval is the tick period.
	Interval time.Duration

	// Timeout bounds one run. Zero means the interval.
	Timeout time.Duration

	// Run does the work. Errors are logged, never fatal.
	Run func(ctx context.Context) error
}

// Scheduler drives a set of periodic tasks on independent tickers.
type Scheduler struct {
	tasks []Task
	log   logger.Logger

	// onRun is an optional completion hook (duration metrics).
	onRun func(task string, d time.Duration, err error)

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithRunHook installs a completion hook called after every task run.
func WithRunHook(hook func(task string, d time.Duration, err error)) Option {
	return func(s *Scheduler) {
		s.onRun = hook
	}
}

// New creates a scheduler for the given tasks.
func New(log logger.Logger, tasks []Task, opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks: tasks,
		log:   log.With("component", "scheduler"),
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches one goroutine per task. Tasks with a non-positive
// interval are skipped.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	for _, task := range s.tasks {
		if task.Interval <= 0 {
			s.log.Warn("skipping task with no interval", "task", task.Name)
			continue
		}
		s.wg.Add(1)
		go s.loop(task)
	}
}

// Stop halts all tasks and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) loop(task Task) {
	defer s.wg.Done()
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runOnce(task)
		case <-s.stop:
			return
		}
	}
}

// runOnce executes one tick with timeout and panic isolation.
func (s *Scheduler) runOnce(task Task) {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = task.Interval
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	err := s.protect(ctx, task)
	elapsed := time.Since(start)

	if err != nil {
		s.log.Warn("task run failed", "task", task.Name, "elapsed", elapsed.String(), "error", err)
	}
	if s.onRun != nil {
		s.onRun(task.Name, elapsed, err)
	}
}

func (s *Scheduler) protect(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task.Run(ctx)
}
