package queue

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Store is the authoritative mapping id -> Job plus status buckets, per
// spec.md §4.1. It is implemented as a single actor goroutine owning the
// map (the Design Notes in spec.md §9 prefer the actor model over
// fine-grained locking, since it makes every mutation linearizable by
// construction) fed by a command channel. All exported methods are
// synchronous round-trips through that channel.
type Store struct {
	cmds        chan storeCmd
	maxSize     int
	defaultMax  int
	done        chan struct{}
}

type storeCmd struct {
	reply chan storeResult
	run   func(s *storeState) storeResult
}

type storeResult struct {
	job   *Job
	jobs  []*Job
	stats Stats
	err   error
}

// storeState is only ever touched by the owning goroutine.
type storeState struct {
	jobs    map[uuid.UUID]*Job
	buckets map[JobStatus]map[uuid.UUID]struct{}
}

// NewStore starts the Store's owning goroutine and returns a handle.
// maxSize is the hard cap on jobs held (spec.md's MAX_QUEUE_SIZE);
// defaultMaxAttempts is used when CreateOptions.MaxAttempts is zero.
func NewStore(maxSize, defaultMaxAttempts int) *Store {
	s := &Store{
		cmds:       make(chan storeCmd),
		maxSize:    maxSize,
		defaultMax: defaultMaxAttempts,
		done:       make(chan struct{}),
	}
	go s.run()
	return s
}

// Close stops the owning goroutine. Not part of the graceful-shutdown
// chain (the Store has no external resources to release) but provided so
// tests can tear down cleanly.
func (s *Store) Close() {
	close(s.done)
}

func (s *Store) run() {
	state := &storeState{
		jobs: make(map[uuid.UUID]*Job),
		buckets: map[JobStatus]map[uuid.UUID]struct{}{
			StatusPending:   {},
			StatusRunning:   {},
			StatusCompleted: {},
			StatusFailed:    {},
			StatusRetrying:  {},
			StatusDead:      {},
		},
	}
	for {
		select {
		case <-s.done:
			return
		case cmd := <-s.cmds:
			cmd.reply <- cmd.run(state)
		}
	}
}

func (s *Store) do(run func(*storeState) storeResult) storeResult {
	reply := make(chan storeResult, 1)
	s.cmds <- storeCmd{reply: reply, run: run}
	return <-reply
}

// moveBucket performs the old-bucket-remove + new-bucket-insert atomically
// (from the perspective of any observer, since it runs entirely inside
// the owning goroutine) so a job is never visible in zero or two buckets.
func (st *storeState) moveBucket(id uuid.UUID, from, to JobStatus) {
	delete(st.buckets[from], id)
	st.buckets[to][id] = struct{}{}
}

// Create inserts a new PENDING job, failing with ErrQueueFull when the
// Store is at capacity.
func (s *Store) Create(jobType string, payload map[string]interface{}, opts CreateOptions) (*Job, error) {
	res := s.do(func(st *storeState) storeResult {
		if len(st.jobs) >= s.maxSize {
			return storeResult{err: ErrQueueFull}
		}
		maxAttempts := opts.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = s.defaultMax
		}
		job := &Job{
			ID:          uuid.New(),
			Type:        jobType,
			Payload:     payload,
			Status:      StatusPending,
			MaxAttempts: maxAttempts,
			CreatedAt:   time.Now(),
		}
		st.jobs[job.ID] = job
		st.buckets[StatusPending][job.ID] = struct{}{}
		return storeResult{job: job.Copy()}
	})
	return res.job, res.err
}

// Get returns a copy of the job, or ErrNotFound.
func (s *Store) Get(id uuid.UUID) (*Job, error) {
	res := s.do(func(st *storeState) storeResult {
		job, ok := st.jobs[id]
		if !ok {
			return storeResult{err: ErrNotFound}
		}
		return storeResult{job: job.Copy()}
	})
	return res.job, res.err
}

// MarkStarted transitions PENDING or RETRYING to RUNNING, increments
// Attempts, and sets StartedAt the first time only (Open Question #2 in
// spec.md §9 is resolved as "first start" — see DESIGN.md).
func (s *Store) MarkStarted(id uuid.UUID) (*Job, error) {
	res := s.do(func(st *storeState) storeResult {
		job, ok := st.jobs[id]
		if !ok {
			return storeResult{err: ErrNotFound}
		}
		if job.Status == StatusRunning {
			return storeResult{err: ErrAlreadyRunning}
		}
		if job.Terminal() {
			return storeResult{err: ErrIllegalTransition}
		}
		from := job.Status
		st.moveBucket(id, from, StatusRunning)
		job.Status = StatusRunning
		job.Attempts++
		job.RetryAt = nil
		if job.StartedAt == nil {
			now := time.Now()
			job.StartedAt = &now
		}
		return storeResult{job: job.Copy()}
	})
	return res.job, res.err
}

// MarkCompleted transitions RUNNING to the terminal COMPLETED state.
func (s *Store) MarkCompleted(id uuid.UUID, result map[string]interface{}) (*Job, error) {
	res := s.do(func(st *storeState) storeResult {
		job, ok := st.jobs[id]
		if !ok {
			return storeResult{err: ErrNotFound}
		}
		if job.Terminal() {
			return storeResult{err: ErrIllegalTransition}
		}
		st.moveBucket(id, job.Status, StatusCompleted)
		job.Status = StatusCompleted
		now := time.Now()
		job.FinishedAt = &now
		job.Result = result
		job.Error = ""
		return storeResult{job: job.Copy()}
	})
	return res.job, res.err
}

// MarkRetrying transitions RUNNING to RETRYING with the given retryAt and
// error. Mutually exclusive with MarkDead for a given failure — the
// caller (Queue Manager) decides which one applies before calling either,
// resolving the ambiguity noted as Open Question #1 in spec.md §9.
func (s *Store) MarkRetrying(id uuid.UUID, errMsg string, retryAt time.Time) (*Job, error) {
	res := s.do(func(st *storeState) storeResult {
		job, ok := st.jobs[id]
		if !ok {
			return storeResult{err: ErrNotFound}
		}
		if job.Terminal() {
			return storeResult{err: ErrIllegalTransition}
		}
		st.moveBucket(id, job.Status, StatusRetrying)
		job.Status = StatusRetrying
		job.Error = errMsg
		at := retryAt
		job.RetryAt = &at
		return storeResult{job: job.Copy()}
	})
	return res.job, res.err
}

// MarkDead transitions RUNNING to the terminal DEAD state.
func (s *Store) MarkDead(id uuid.UUID, errMsg string) (*Job, error) {
	res := s.do(func(st *storeState) storeResult {
		job, ok := st.jobs[id]
		if !ok {
			return storeResult{err: ErrNotFound}
		}
		if job.Terminal() {
			return storeResult{err: ErrIllegalTransition}
		}
		st.moveBucket(id, job.Status, StatusDead)
		job.Status = StatusDead
		job.Error = errMsg
		now := time.Now()
		job.FinishedAt = &now
		job.RetryAt = nil
		return storeResult{job: job.Copy()}
	})
	return res.job, res.err
}

// ReadyForExecution returns PENDING jobs plus RETRYING jobs whose RetryAt
// has elapsed, FIFO by CreatedAt, ties broken by id.
func (s *Store) ReadyForExecution() []*Job {
	res := s.do(func(st *storeState) storeResult {
		now := time.Now()
		var ready []*Job
		for id := range st.buckets[StatusPending] {
			ready = append(ready, st.jobs[id].Copy())
		}
		for id := range st.buckets[StatusRetrying] {
			job := st.jobs[id]
			if job.RetryAt != nil && !job.RetryAt.After(now) {
				ready = append(ready, job.Copy())
			}
		}
		sort.Slice(ready, func(i, j int) bool {
			if ready[i].CreatedAt.Equal(ready[j].CreatedAt) {
				return ready[i].ID.String() < ready[j].ID.String()
			}
			return ready[i].CreatedAt.Before(ready[j].CreatedAt)
		})
		return storeResult{jobs: ready}
	})
	return res.jobs
}

// Stats returns counts by status bucket plus the total.
func (s *Store) Stats() Stats {
	res := s.do(func(st *storeState) storeResult {
		stats := Stats{
			Total:     len(st.jobs),
			ByStatus:  make(map[JobStatus]int, len(st.buckets)),
			UpdatedAt: time.Now(),
		}
		for status, ids := range st.buckets {
			stats.ByStatus[status] = len(ids)
		}
		return storeResult{stats: stats}
	})
	return res.stats
}

// List returns copies of every job, newest first, optionally filtered by
// status. Backs the ADD'd `GET /jobs` convenience endpoint.
func (s *Store) List(status JobStatus, limit, offset int) []*Job {
	res := s.do(func(st *storeState) storeResult {
		var all []*Job
		if status != "" {
			for id := range st.buckets[status] {
				all = append(all, st.jobs[id].Copy())
			}
		} else {
			for _, job := range st.jobs {
				all = append(all, job.Copy())
			}
		}
		sort.Slice(all, func(i, j int) bool {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		})
		if offset > len(all) {
			offset = len(all)
		}
		all = all[offset:]
		if limit > 0 && limit < len(all) {
			all = all[:limit]
		}
		return storeResult{jobs: all}
	})
	return res.jobs
}
