// Package shutdown coordinates the orderly release of broker
// resources when the process stops.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wirepool/wirepool-go/internal/telemetry/logger"
)

// DefaultGrace bounds the whole release sequence.
const DefaultGrace = 30 * time.Second

// releaser is one named cleanup step.
type releaser struct {
	name string
	fn   func(context.Context) error
}

// Coordinator waits for a stop signal, then runs registered releasers
// newest-first, the reverse of startup order, under one grace
// deadline. The HTTP listener goes down before the sweeps, the sweeps
// before the stores they write to.
type Coordinator struct {
	grace time.Duration
	log   logger.Logger

	mu        sync.Mutex
	releasers []releaser

	trigger     chan struct{}
	triggerOnce sync.Once
	done        chan struct{}
}

// New creates a coordinator. A zero grace falls back to DefaultGrace,
// a nil logger to the default logger.
func New(grace time.Duration, log logger.Logger) *Coordinator {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if log == nil {
		log = logger.Default()
	}
	return &Coordinator{
		grace:   grace,
		log:     log.With("component", "shutdown"),
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Register adds a named releaser. Registration order is startup
// order; release runs in reverse.
func (c *Coordinator) Register(name string, fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releasers = append(c.releasers, releaser{name: name, fn: fn})
}

// Trigger starts the release sequence without an OS signal.
// Safe to call more than once.
func (c *Coordinator) Trigger() {
	c.triggerOnce.Do(func() { close(c.trigger) })
}

// Wait blocks until SIGINT, SIGTERM or Trigger, then runs every
// releaser newest-first under the grace deadline. Release errors are
// logged per releaser and joined into the return value.
func (c *Coordinator) Wait() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		c.log.Info("stop signal received", "signal", sig.String())
	case <-c.trigger:
		c.log.Info("shutdown triggered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.grace)
	defer cancel()

	c.mu.Lock()
	releasers := make([]releaser, len(c.releasers))
	copy(releasers, c.releasers)
	c.mu.Unlock()

	var errs []error
	for i := len(releasers) - 1; i >= 0; i-- {
		r := releasers[i]
		c.log.Info("releasing", "name", r.name)
		if err := r.fn(ctx); err != nil {
			c.log.Error("release failed", "name", r.name, "error", err)
			errs = append(errs, err)
		}
	}

	close(c.done)
	return errors.Join(errs...)
}

// Done closes once the release sequence has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}
