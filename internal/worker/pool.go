package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxqueue/jobqueue/internal/logger"
	"github.com/fluxqueue/jobqueue/internal/queue"
)

// workerMsg is a pool-to-worker message: {type: execute, job} or
// {type: terminate}, per spec.md §4.4.
type workerMsg struct {
	execute   bool
	terminate bool
	job       *queue.Job
}

// workerEvent is a worker-to-pool message.
type workerEvent struct {
	workerID string
	kind     string // ready | success | failure | worker-error | terminated
	job      *queue.Job
	result   map[string]interface{}
	err      error
}

// workerHandle is the pool's view of one execution context.
type workerHandle struct {
	id     string
	inbox  chan workerMsg
	status WorkerStatus
}

// executeRequest is one pending Execute() call awaiting assignment.
type executeRequest struct {
	ctx   context.Context
	job   *queue.Job
	reply chan executeResult
}

type executeResult struct {
	result map[string]interface{}
	err    error
}

// Pool is the Worker Pool described in spec.md §4.4: a fixed number of
// isolated execution contexts, fed and drained by message passing, with
// self-healing on crash.
type Pool struct {
	size        int
	initTimeout time.Duration
	executors   map[string]Executor
	log         *logger.Logger

	events chan workerEvent

	// The following fields are owned exclusively by run(), the pool's
	// single owning goroutine, mirroring the actor discipline used by
	// the Job Store.
	cmds chan poolCmd
	done chan struct{}
}

type poolCmd struct {
	kind    string // execute | stats | shutdown
	req     executeRequest
	reply   chan Stats
	doneAck chan struct{}
}

// NewPool constructs a Pool with the given executor registry. Call
// Initialize to spin up workers before the first Execute.
func NewPool(size int, initTimeout time.Duration, executors map[string]Executor, log *logger.Logger) *Pool {
	return &Pool{
		size:        size,
		initTimeout: initTimeout,
		executors:   executors,
		log:         log,
		events:      make(chan workerEvent, size*2),
		cmds:        make(chan poolCmd),
		done:        make(chan struct{}),
	}
}

// poolState is only ever touched by run().
type poolState struct {
	workers      map[string]*workerHandle
	available    []*workerHandle
	waiting      []executeRequest
	inflight     map[string]executeRequest // workerID -> request currently assigned
	shuttingDown bool
	nextID       int
}

// Initialize constructs size workers and waits for each to signal
// readiness, failing with ErrInitTimeout if any worker misses the
// deadline (spec.md §4.4).
func (p *Pool) Initialize(ctx context.Context) error {
	state := &poolState{
		workers:  make(map[string]*workerHandle),
		inflight: make(map[string]executeRequest),
	}

	ready := make(chan string, p.size)
	for i := 0; i < p.size; i++ {
		p.spawnWorker(state, ready)
	}

	deadline := time.After(p.initTimeout)
	acked := 0
	for acked < p.size {
		select {
		case <-ready:
			acked++
		case <-deadline:
			return ErrInitTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Each worker's own "ready" event is still buffered in p.events and
	// will be drained by run() below, which is what actually populates
	// state.available — doing it here too would double-count them.
	go p.run(state)
	return nil
}

// spawnWorker starts a new worker goroutine and registers its handle.
// The ready channel, when non-nil, also receives the worker's id once
// it signals readiness — used only during Initialize.
func (p *Pool) spawnWorker(state *poolState, ready chan<- string) *workerHandle {
	state.nextID++
	id := fmt.Sprintf("worker-%d", state.nextID)
	w := &workerHandle{id: id, inbox: make(chan workerMsg, 1), status: WorkerStarting}
	state.workers[id] = w
	go p.runWorker(w, ready)
	return w
}

// runWorker is the isolated execution context: it signals readiness,
// then loops on its inbox executing jobs and reporting outcomes via
// p.events. A panicking executor is recovered here and reported as
// worker-error rather than crashing the process.
func (p *Pool) runWorker(w *workerHandle, ready chan<- string) {
	p.events <- workerEvent{workerID: w.id, kind: "ready"}
	if ready != nil {
		ready <- w.id
	}

	for msg := range w.inbox {
		if msg.terminate {
			p.events <- workerEvent{workerID: w.id, kind: "terminated"}
			return
		}
		p.runJob(w, msg.job)
	}
}

func (p *Pool) runJob(w *workerHandle, job *queue.Job) {
	defer func() {
		if r := recover(); r != nil {
			p.events <- workerEvent{workerID: w.id, kind: "worker-error", job: job, err: fmt.Errorf("panic: %v", r)}
		}
	}()

	executor, ok := p.executors[job.Type]
	if !ok {
		p.events <- workerEvent{workerID: w.id, kind: "failure", job: job, err: ErrNoExecutor}
		return
	}

	result, err := executor.Execute(context.Background(), job)
	if err != nil {
		p.events <- workerEvent{workerID: w.id, kind: "failure", job: job, err: err}
		return
	}
	p.events <- workerEvent{workerID: w.id, kind: "success", job: job, result: result}
}

// run is the pool's owning goroutine: the only place that mutates
// poolState, serialising execute requests, worker events and shutdown
// against each other.
func (p *Pool) run(state *poolState) {
	for {
		select {
		case <-p.done:
			return
		case ev := <-p.events:
			p.handleEvent(state, ev)
		case cmd := <-p.cmds:
			p.handleCmd(state, cmd)
		}
	}
}

func (p *Pool) handleEvent(state *poolState, ev workerEvent) {
	w, ok := state.workers[ev.workerID]
	if !ok {
		return
	}

	switch ev.kind {
	case "ready":
		// handled synchronously during Initialize via the ready channel;
		// readiness after a replacement spawn just marks the worker free.
		w.status = WorkerReady
		p.offerWorker(state, w)

	case "success":
		req, ok := state.inflight[w.id]
		delete(state.inflight, w.id)
		if ok {
			req.reply <- executeResult{result: ev.result}
		}
		w.status = WorkerReady
		p.offerWorker(state, w)

	case "failure":
		req, ok := state.inflight[w.id]
		delete(state.inflight, w.id)
		if ok {
			req.reply <- executeResult{err: &ExecutionError{Kind: KindExecutorError, Err: ev.err}}
		}
		w.status = WorkerReady
		p.offerWorker(state, w)

	case "worker-error":
		req, ok := state.inflight[w.id]
		delete(state.inflight, w.id)
		if ok {
			req.reply <- executeResult{err: &ExecutionError{Kind: KindWorkerCrashed, Err: ev.err}}
		}
		p.retireWorker(state, w, "worker-error")

	case "terminated":
		delete(state.workers, w.id)
	}
}

// offerWorker assigns w the oldest waiting request, if any, otherwise
// returns it to the available FIFO.
func (p *Pool) offerWorker(state *poolState, w *workerHandle) {
	if state.shuttingDown {
		w.inbox <- workerMsg{terminate: true}
		return
	}
	if len(state.waiting) > 0 {
		req := state.waiting[0]
		state.waiting = state.waiting[1:]
		p.assign(state, w, req)
		return
	}
	state.available = append(state.available, w)
}

func (p *Pool) assign(state *poolState, w *workerHandle, req executeRequest) {
	w.status = WorkerBusy
	state.inflight[w.id] = req
	w.inbox <- workerMsg{execute: true, job: req.job}
}

// retireWorker removes a crashed worker from the pool and, unless
// shutting down, asynchronously starts a replacement (spec.md §4.4:
// "replacement failure is logged, not propagated").
func (p *Pool) retireWorker(state *poolState, w *workerHandle, reason string) {
	delete(state.workers, w.id)
	if p.log != nil {
		p.log.Warn("worker retired", "worker", w.id, "reason", reason)
	}
	if state.shuttingDown {
		return
	}
	replacement := p.spawnWorker(state, nil)
	_ = replacement
}

func (p *Pool) handleCmd(state *poolState, cmd poolCmd) {
	switch cmd.kind {
	case "execute":
		if state.shuttingDown {
			cmd.req.reply <- executeResult{err: &ExecutionError{Kind: KindPoolShuttingDown}}
			return
		}
		if len(state.available) > 0 {
			w := state.available[0]
			state.available = state.available[1:]
			p.assign(state, w, cmd.req)
			return
		}
		state.waiting = append(state.waiting, cmd.req)

	case "stats":
		stats := Stats{Total: len(state.workers) + len(state.inflight)}
		stats.Total = len(state.workers)
		stats.Busy = len(state.inflight)
		stats.Available = len(state.available)
		cmd.reply <- stats

	case "shutdown":
		state.shuttingDown = true
		// Workers currently idle terminate immediately; busy workers
		// terminate as soon as their in-flight job resolves (handled in
		// offerWorker once their success/failure event arrives).
		for _, w := range state.available {
			w.inbox <- workerMsg{terminate: true}
		}
		state.available = nil
		close(cmd.doneAck)
	}
}

// Execute blocks until a worker is free and the job resolves, per
// spec.md §4.4. It never panics once the pool is initialized; pool and
// executor failures are *ExecutionError, while a ctx cancelled before
// the job resolves returns ctx.Err() as is.
func (p *Pool) Execute(ctx context.Context, job *queue.Job) (map[string]interface{}, error) {
	reply := make(chan executeResult, 1)
	select {
	case p.cmds <- poolCmd{kind: "execute", req: executeRequest{ctx: ctx, job: job, reply: reply}}:
	case <-p.done:
		return nil, &ExecutionError{Kind: KindPoolShuttingDown}
	}

	select {
	case res := <-reply:
		return res.result, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown enters draining state: rejects new Execute calls, lets
// currently-busy workers finish their job, then terminates every
// worker. No timeout is imposed here — the Shutdown Coordinator owns
// the overall deadline (spec.md §4.4/§4.6).
func (p *Pool) Shutdown(ctx context.Context) error {
	ack := make(chan struct{})
	p.cmds <- poolCmd{kind: "shutdown", doneAck: ack}
	<-ack

	// Wait for the pool to have no more registered workers (all have
	// acknowledged termination) or for ctx to expire.
	for {
		stats := p.Stats()
		if stats.Total == 0 {
			close(p.done)
			return nil
		}
		select {
		case <-ctx.Done():
			close(p.done)
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// Stats returns the current {total, available, busy} snapshot.
func (p *Pool) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case p.cmds <- poolCmd{kind: "stats", reply: reply}:
		return <-reply
	case <-p.done:
		return Stats{}
	}
}
