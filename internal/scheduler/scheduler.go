// Package scheduler implements the Scheduler: the periodic dispatcher
// that converts the Queue Manager's ready set into actual Worker Pool
// executions, one dispatch in flight per job id, per spec.md §4.5.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fluxqueue/jobqueue/internal/logger"
	"github.com/fluxqueue/jobqueue/internal/queue"
	"github.com/fluxqueue/jobqueue/internal/worker"
)

// Scheduler polls the Queue Manager at PollInterval and hands ready
// jobs to the Worker Pool, applying outcomes back through the Manager.
type Scheduler struct {
	manager  *queue.Manager
	pool     *worker.Pool
	interval time.Duration
	log      *logger.Logger

	mu       sync.Mutex
	paused   bool
	stopped  bool
	inflight map[uuid.UUID]struct{}

	activeWG sync.WaitGroup
	timer    *time.Timer
	wake     chan struct{}
	done     chan struct{}
}

// New builds a Scheduler over manager and pool, polling every interval.
func New(manager *queue.Manager, pool *worker.Pool, interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		manager:  manager,
		pool:     pool,
		interval: interval,
		log:      log,
		inflight: make(map[uuid.UUID]struct{}),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Run starts the poll loop. It returns once Stop is called or ctx is
// cancelled; callers typically launch it with `go sched.Run(ctx)`.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

// pollOnce runs a single poll-and-dispatch cycle (spec.md §4.5 step 1-4).
func (s *Scheduler) pollOnce(ctx context.Context) {
	s.mu.Lock()
	if s.paused || s.stopped {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ready := s.manager.ReadyForExecution()
	for _, job := range ready {
		s.mu.Lock()
		if _, busy := s.inflight[job.ID]; busy {
			s.mu.Unlock()
			continue
		}
		s.inflight[job.ID] = struct{}{}
		s.mu.Unlock()

		started, err := s.manager.StartJob(job.ID)
		if err != nil {
			// Another path (unexpected) already moved this job; drop it
			// from in-flight tracking and move on without dispatching.
			s.releaseInflight(job.ID)
			continue
		}

		s.activeWG.Add(1)
		go s.dispatch(ctx, started)
	}
}

// dispatch hands one job to the Worker Pool and applies the outcome
// back through the Queue Manager, without blocking the poll loop
// (spec.md §4.5 step 3: "Do not await the outcome before dispatching
// the next job").
func (s *Scheduler) dispatch(ctx context.Context, job *queue.Job) {
	defer s.activeWG.Done()
	defer s.releaseInflight(job.ID)

	result, err := s.pool.Execute(ctx, job)
	if err != nil {
		if _, failErr := s.manager.FailJob(job.ID, err.Error()); failErr != nil && s.log != nil {
			s.log.Error("failJob after dispatch error", "job_id", job.ID, "error", failErr)
		}
		return
	}

	if _, completeErr := s.manager.CompleteJob(job.ID, result); completeErr != nil && s.log != nil {
		s.log.Error("completeJob after dispatch success", "job_id", job.ID, "error", completeErr)
	}
}

func (s *Scheduler) releaseInflight(id uuid.UUID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// Pause stops polling without affecting in-flight executions. Calling
// Pause twice is equivalent to calling it once (spec.md §8 Idempotence).
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume restarts polling after a Pause.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// Stop permanently halts polling. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.done)
}

// WaitForActiveExecutions blocks until the in-flight set is empty,
// i.e. every dispatched job has resolved through the Queue Manager.
// Used by the Shutdown Coordinator (spec.md §4.6 step 1).
func (s *Scheduler) WaitForActiveExecutions() {
	s.activeWG.Wait()
}

// InflightCount reports the current size of the in-flight set, used by
// the Health Monitor.
func (s *Scheduler) InflightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Paused reports whether the scheduler is currently paused.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}
