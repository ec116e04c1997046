// Package shutdown implements the Shutdown Coordinator: ordered
// teardown of registered steps on receipt of a termination signal,
// bounded by a global timeout, per spec.md §4.6.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fluxqueue/jobqueue/internal/logger"
)

// Step is one registered teardown action. It receives a context bound
// to the coordinator's global timeout.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Coordinator runs registered Steps in registration order on signal,
// logging (not propagating) individual step errors, and forces exit 1
// if the global timeout elapses before all steps finish.
type Coordinator struct {
	timeout time.Duration
	log     *logger.Logger

	mu          sync.Mutex
	steps       []Step
	shuttingDown bool
}

// New builds a Coordinator with the given global timeout.
func New(timeout time.Duration, log *logger.Logger) *Coordinator {
	return &Coordinator{timeout: timeout, log: log}
}

// Register appends a teardown step. Steps registered later run later —
// callers must register in the required order (spec.md §4.6: Scheduler
// pause+drain, then Worker Pool shutdown, then transport stop).
func (c *Coordinator) Register(name string, run func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, Step{Name: name, Run: run})
}

// ListenForSignals blocks until SIGINT or SIGTERM arrives (or ctx is
// cancelled), then runs Shutdown and returns the process exit code the
// caller should use with os.Exit.
func (c *Coordinator) ListenForSignals(ctx context.Context) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		if c.log != nil {
			c.log.Info("shutdown signal received", "signal", sig.String())
		}
	case <-ctx.Done():
	}

	return c.Shutdown()
}

// Shutdown runs every registered step in order. Repeat calls are
// idempotent: a call already in progress (or finished) is logged and
// dropped, returning 0 immediately (spec.md §8 Idempotence).
func (c *Coordinator) Shutdown() int {
	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		if c.log != nil {
			c.log.Warn("shutdown already in progress, ignoring repeat signal")
		}
		return 0
	}
	c.shuttingDown = true
	steps := append([]Step(nil), c.steps...)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for _, step := range steps {
			if err := step.Run(ctx); err != nil && c.log != nil {
				c.log.Error("shutdown step failed", "step", step.Name, "error", err)
			}
		}
		close(done)
	}()

	select {
	case <-done:
		if c.log != nil {
			c.log.Info("graceful shutdown complete")
		}
		return 0
	case <-ctx.Done():
		if c.log != nil {
			c.log.Error("shutdown timed out, forcing exit", "timeout", c.timeout)
		}
		return 1
	}
}
