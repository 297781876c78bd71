package shutdown

import (
	"context"
	"errors"
	"io"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/wirepool/wirepool-go/internal/telemetry/logger"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: io.Discard})
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// waitDone runs Wait in a goroutine and returns its result channel.
func waitDone(c *Coordinator) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- c.Wait() }()
	return errCh
}

func collect(errCh <-chan error, t *testing.T) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return")
		return nil
	}
}

func TestCoordinator_ReleasesInReverseOrder(t *testing.T) {
	c := New(time.Second, testLogger(t))

	var mu sync.Mutex
	var order []string
	step := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}
	c.Register("config store", step("config store"))
	c.Register("sweeps", step("sweeps"))
	c.Register("http server", step("http server"))

	errCh := waitDone(c)
	c.Trigger()
	if err := collect(errCh, t); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"http server", "sweeps", "config store"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want newest-first %v", order, want)
		}
	}
}

func TestCoordinator_JoinsReleaseErrors(t *testing.T) {
	c := New(time.Second, testLogger(t))

	busErr := errors.New("event bus close failed")
	storeErr := errors.New("audit store close failed")
	c.Register("audit store", func(context.Context) error { return storeErr })
	c.Register("event bus", func(context.Context) error { return busErr })
	c.Register("http server", func(context.Context) error { return nil })

	errCh := waitDone(c)
	c.Trigger()
	err := collect(errCh, t)

	if !errors.Is(err, busErr) {
		t.Errorf("joined error should carry %v, got %v", busErr, err)
	}
	if !errors.Is(err, storeErr) {
		t.Errorf("joined error should carry %v, got %v", storeErr, err)
	}
}

func TestCoordinator_GraceDeadlineVisibleToReleasers(t *testing.T) {
	c := New(5*time.Second, testLogger(t))

	var deadlineSet bool
	c.Register("http server", func(ctx context.Context) error {
		_, deadlineSet = ctx.Deadline()
		return nil
	})

	errCh := waitDone(c)
	c.Trigger()
	if err := collect(errCh, t); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !deadlineSet {
		t.Error("releasers should see the grace deadline on their context")
	}
}

func TestCoordinator_DoneAndRepeatTrigger(t *testing.T) {
	c := New(time.Second, testLogger(t))

	select {
	case <-c.Done():
		t.Fatal("Done should stay open before shutdown")
	default:
	}

	errCh := waitDone(c)
	c.Trigger()
	c.Trigger() // repeat triggers are no-ops
	if err := collect(errCh, t); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	select {
	case <-c.Done():
	default:
		t.Error("Done should close after the release sequence")
	}
}

func TestCoordinator_SignalStartsRelease(t *testing.T) {
	c := New(time.Second, testLogger(t))

	released := make(chan struct{})
	c.Register("http server", func(context.Context) error {
		close(released)
		return nil
	})

	errCh := waitDone(c)
	// Give Wait a beat to install the signal handler.
	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill: %v", err)
	}

	if err := collect(errCh, t); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	select {
	case <-released:
	default:
		t.Error("releaser should have run on SIGTERM")
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(0, nil)
	if c.grace != DefaultGrace {
		t.Errorf("grace = %v, want %v", c.grace, DefaultGrace)
	}
	if c.log == nil {
		t.Error("nil logger should fall back to the default")
	}
}
