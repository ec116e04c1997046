// Package queue implements the Job Store and Queue Manager: the
// authoritative state machine for jobs submitted to the service.
package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus is one of the buckets a Job occupies; every job is in exactly
// one at all times.
type JobStatus string

const (
	StatusPending   JobStatus = "PENDING"
	StatusRunning   JobStatus = "RUNNING"
	StatusCompleted JobStatus = "COMPLETED"
	StatusFailed    JobStatus = "FAILED"
	StatusRetrying  JobStatus = "RETRYING"
	StatusDead      JobStatus = "DEAD"
)

// JobTypeSendEmail is the one job type shipped in v1. Additional types are
// register-only against the worker pool's executor registry.
const JobTypeSendEmail = "SEND_EMAIL"

// Job is the identity and state of one unit of work. Fields are mutated
// only by the Store's owning goroutine; callers always receive copies.
type Job struct {
	ID          uuid.UUID
	Type        string
	Payload     map[string]interface{}
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	Error       string
	RetryAt     *time.Time
	Result      map[string]interface{}
}

// Terminal reports whether the job can never transition again.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusDead
}

// Copy returns a defensive shallow copy, safe to hand to callers outside
// the Store's owning goroutine.
func (j *Job) Copy() *Job {
	cp := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	if j.RetryAt != nil {
		t := *j.RetryAt
		cp.RetryAt = &t
	}
	return &cp
}

// Sentinel errors, matching the taxonomy in spec.md §7.
var (
	ErrQueueFull         = errors.New("QUEUE_FULL")
	ErrNotFound          = errors.New("NOT_FOUND")
	ErrAlreadyRunning    = errors.New("ALREADY_RUNNING")
	ErrIllegalTransition = errors.New("ILLEGAL_TRANSITION")
)

// Stats is the Store's bucket snapshot, per spec.md §4.1 stats().
type Stats struct {
	Total     int
	ByStatus  map[JobStatus]int
	UpdatedAt time.Time
}

// CreateOptions allows a caller to override the default maxAttempts when
// submitting a job.
type CreateOptions struct {
	MaxAttempts int
}
