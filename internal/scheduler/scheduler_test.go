package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wirepool/wirepool-go/internal/telemetry/logger"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Output: io.Discard})
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestScheduler_RunsTasks(t *testing.T) {
	var runs atomic.Int64
	s := New(testLogger(t), []Task{{
		Name:     "counter",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}})
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("task ran %d times, want >= 3", runs.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduler_PanicIsolated(t *testing.T) {
	var after atomic.Int64
	var hookErr atomic.Value
	s := New(testLogger(t), []Task{{
		Name:     "panics",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			after.Add(1)
			panic("sweep exploded")
		},
	}}, WithRunHook(func(task string, _ time.Duration, err error) {
		if err != nil {
			hookErr.Store(err)
		}
	}))
	s.Start()
	defer s.Stop()

	// The panicking task keeps being rescheduled.
	deadline := time.Now().Add(2 * time.Second)
	for after.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("task ran %d times after panic, want >= 2", after.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	err, _ := hookErr.Load().(error)
	if err == nil || err.Error() != "task panic: sweep exploded" {
		t.Errorf("hook error = %v", err)
	}
}

func TestScheduler_RunHook(t *testing.T) {
	var mu sync.Mutex
	type call struct {
		task string
		err  error
	}
	var calls []call

	boom := errors.New("boom")
	s := New(testLogger(t), []Task{{
		Name:     "failing",
		Interval: 10 * time.Millisecond,
		Run:      func(context.Context) error { return boom },
	}}, WithRunHook(func(task string, d time.Duration, err error) {
		mu.Lock()
		calls = append(calls, call{task, err})
		mu.Unlock()
	}))
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(calls)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run hook never called")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls[0].task != "failing" || !errors.Is(calls[0].err, boom) {
		t.Errorf("hook call = %+v", calls[0])
	}
}

func TestScheduler_TaskTimeout(t *testing.T) {
	var deadlineSet atomic.Bool
	s := New(testLogger(t), []Task{{
		Name:     "timed",
		Interval: 10 * time.Millisecond,
		Timeout:  20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); ok {
				deadlineSet.Store(true)
			}
			return nil
		},
	}})
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for !deadlineSet.Load() {
		if time.Now().After(deadline) {
			t.Fatal("task context should carry a deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduler_SkipsZeroInterval(t *testing.T) {
	var runs atomic.Int64
	s := New(testLogger(t), []Task{{
		Name: "disabled",
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}})
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if runs.Load() != 0 {
		t.Errorf("a task without an interval ran %d times", runs.Load())
	}
}

func TestScheduler_StopWaits(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var finished atomic.Bool

	s := New(testLogger(t), []Task{{
		Name:     "slow",
		Interval: 10 * time.Millisecond,
		Timeout:  5 * time.Second,
		Run: func(context.Context) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			finished.Store(true)
			return nil
		},
	}})
	s.Start()

	<-started
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	s.Stop()

	if !finished.Load() {
		t.Error("Stop returned before the in-flight run finished")
	}

	s.Stop() // repeat is a no-op
}
