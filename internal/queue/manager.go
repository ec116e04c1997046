package queue

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Manager is the policy gatekeeper above the Store (spec.md §4.2): the
// only component that emits lifecycle events, and the only place that
// decides retry-vs-dead and computes backoff.
type Manager struct {
	store       *Store
	bus         *Bus
	backoffBase time.Duration
}

// NewManager wires a Manager to its Store and Event Bus. backoffBase is
// RETRY_BACKOFF_BASE_MS from configuration.
func NewManager(store *Store, bus *Bus, backoffBase time.Duration) *Manager {
	return &Manager{store: store, bus: bus, backoffBase: backoffBase}
}

// CreateJob delegates to the Store and emits job:created. Never blocks.
func (m *Manager) CreateJob(jobType string, payload map[string]interface{}, opts CreateOptions) (*Job, error) {
	job, err := m.store.Create(jobType, payload, opts)
	if err != nil {
		return nil, err
	}
	m.bus.Publish(Event{Topic: TopicCreated, Job: job})
	return job, nil
}

// StartJob transitions a job to RUNNING and emits job:started. Fails with
// ErrAlreadyRunning if the job is already RUNNING (spec.md §4.2).
func (m *Manager) StartJob(id uuid.UUID) (*Job, error) {
	job, err := m.store.MarkStarted(id)
	if err != nil {
		return nil, err
	}
	m.bus.Publish(Event{Topic: TopicStarted, Job: job})
	return job, nil
}

// CompleteJob transitions a job to the terminal COMPLETED state and
// emits job:completed.
func (m *Manager) CompleteJob(id uuid.UUID, result map[string]interface{}) (*Job, error) {
	job, err := m.store.MarkCompleted(id, result)
	if err != nil {
		return nil, err
	}
	m.bus.Publish(Event{Topic: TopicCompleted, Job: job})
	return job, nil
}

// FailJob records a failed dispatch. If the job has attempts remaining it
// computes an exponential backoff delay and transitions to RETRYING;
// otherwise it transitions to DEAD. Emits job:failed followed by either
// job:retrying or job:dead — contractually in that order (spec.md §4.2).
//
// The retrying/dead branches are mutually exclusive by construction here
// (Manager decides before calling either Store method), resolving Open
// Question #1 of spec.md §9.
func (m *Manager) FailJob(id uuid.UUID, errMsg string) (*Job, error) {
	current, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}

	failedSnapshot := current.Copy()
	failedSnapshot.Status = StatusFailed
	failedSnapshot.Error = errMsg
	m.bus.Publish(Event{Topic: TopicFailed, Job: failedSnapshot, Data: map[string]interface{}{
		"error":       errMsg,
		"retry_count": current.Attempts,
	}})

	if current.Attempts < current.MaxAttempts {
		delay := m.retryDelay(current.Attempts)
		retryAt := time.Now().Add(delay)
		job, err := m.store.MarkRetrying(id, errMsg, retryAt)
		if err != nil {
			return nil, err
		}
		m.bus.Publish(Event{Topic: TopicRetrying, Job: job, Data: map[string]interface{}{
			"delay": delay,
		}})
		return job, nil
	}

	job, err := m.store.MarkDead(id, errMsg)
	if err != nil {
		return nil, err
	}
	m.bus.Publish(Event{Topic: TopicDead, Job: job})
	return job, nil
}

// retryDelay implements base*2^(attempts-1), per spec.md §4.2. attempts
// is always >= 1 here because FailJob is only reachable after StartJob
// incremented it.
func (m *Manager) retryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	factor := math.Pow(2, float64(attempts-1))
	return time.Duration(float64(m.backoffBase) * factor)
}

// Get returns a job by id.
func (m *Manager) Get(id uuid.UUID) (*Job, error) {
	return m.store.Get(id)
}

// List returns jobs, optionally filtered by status, for the ADD'd
// GET /jobs convenience endpoint.
func (m *Manager) List(status JobStatus, limit, offset int) []*Job {
	return m.store.List(status, limit, offset)
}

// ReadyForExecution returns the current ready set (spec.md §4.1/§4.5).
func (m *Manager) ReadyForExecution() []*Job {
	return m.store.ReadyForExecution()
}

// Stats returns the Store's bucket snapshot.
func (m *Manager) Stats() Stats {
	return m.store.Stats()
}

// Bus exposes the underlying Event Bus for subscription by observers
// (Health Monitor, Metrics Registry, Audit Sink, WebSocket hub).
func (m *Manager) Bus() *Bus {
	return m.bus
}

// ParseUUID is a small convenience used by the HTTP layer to turn a path
// parameter into a job id, returning a wrapped NOT_FOUND-shaped error on
// malformed input so handlers don't need to special-case it.
func ParseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNotFound, s)
	}
	return id, nil
}
