// Package worker implements the Worker Pool: a fixed-size set of
// isolated execution contexts that run type-specific executors on
// behalf of the Scheduler, per spec.md §4.4.
package worker

import (
	"context"
	"errors"

	"github.com/fluxqueue/jobqueue/internal/queue"
)

// Executor runs a single job type to completion (or failure). Executors
// are the "type-specific executor plug-ins" spec.md §1 treats as
// external collaborators — the pool only knows how to look one up by
// job.Type and call it inside an isolated context.
type Executor interface {
	// Execute runs job and returns a result payload on success, or an
	// error that becomes the job's failure reason.
	Execute(ctx context.Context, job *queue.Job) (map[string]interface{}, error)
}

// ExecutorFunc adapts a plain function to an Executor.
type ExecutorFunc func(ctx context.Context, job *queue.Job) (map[string]interface{}, error)

func (f ExecutorFunc) Execute(ctx context.Context, job *queue.Job) (map[string]interface{}, error) {
	return f(ctx, job)
}

// FailureKind classifies why a dispatch failed, per the taxonomy in
// spec.md §4.4.
type FailureKind string

const (
	KindExecutorError    FailureKind = "EXECUTOR_ERROR"
	KindWorkerCrashed    FailureKind = "WORKER_CRASHED"
	KindPoolShuttingDown FailureKind = "POOL_SHUTTING_DOWN"
)

// ExecutionError wraps a dispatch failure with its Kind, so callers
// (the Scheduler) can log or branch on the failure's origin without
// string-matching.
type ExecutionError struct {
	Kind FailureKind
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ErrNoExecutor is returned (wrapped as EXECUTOR_ERROR) when no
// executor is registered for a job's type.
var ErrNoExecutor = errors.New("no executor registered for job type")

// ErrInitTimeout is returned by Initialize when a worker fails to
// signal readiness within WorkerInitTimeout.
var ErrInitTimeout = errors.New("WORKER_INIT_FAILED")

// WorkerStatus mirrors the lifecycle states in spec.md §4.4.
type WorkerStatus string

const (
	WorkerStarting  WorkerStatus = "STARTING"
	WorkerReady     WorkerStatus = "READY"
	WorkerBusy      WorkerStatus = "BUSY"
	WorkerDraining  WorkerStatus = "DRAINING"
	WorkerTerminated WorkerStatus = "TERMINATED"
)

// Stats is the pool-level snapshot backing stats().
type Stats struct {
	Total     int
	Available int
	Busy      int
}
