// Package cron implements the CronScheduler: a thin recurring-job
// producer above the Queue Manager, per SPEC_FULL.md §4.10. It is
// deliberately a separate concept from the poll-based dispatch
// Scheduler in internal/scheduler — this one only ever calls
// QueueManager.createJob, never startJob/completeJob/failJob.
package cron

import (
	"fmt"
	"sync"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/fluxqueue/jobqueue/internal/logger"
	"github.com/fluxqueue/jobqueue/internal/queue"
)

// ScheduleSpec names one recurring job production rule.
type ScheduleSpec struct {
	Name        string
	CronSpec    string
	JobType     string
	Payload     map[string]interface{}
	MaxAttempts int
}

// CronScheduler wraps robfig/cron to turn ScheduleSpecs into new jobs
// on a timer. It holds no job-execution state of its own.
type CronScheduler struct {
	manager *queue.Manager
	cron    *robfigcron.Cron
	log     *logger.Logger

	mu        sync.Mutex
	schedules map[string]ScheduleSpec
	entries   map[string]robfigcron.EntryID
	running   bool
}

// New builds a CronScheduler over manager. Call Schedule for each
// recurring rule before Start.
func New(manager *queue.Manager, log *logger.Logger) *CronScheduler {
	return &CronScheduler{
		manager:   manager,
		cron:      robfigcron.New(robfigcron.WithSeconds()),
		log:       log,
		schedules: make(map[string]ScheduleSpec),
		entries:   make(map[string]robfigcron.EntryID),
	}
}

// Schedule registers or replaces a named recurring rule. Safe to call
// before or after Start.
func (c *CronScheduler) Schedule(spec ScheduleSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.cron.Parser().Parse(spec.CronSpec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec.CronSpec, err)
	}

	if existing, ok := c.entries[spec.Name]; ok {
		c.cron.Remove(existing)
		delete(c.entries, spec.Name)
	}

	entryID, err := c.cron.AddFunc(spec.CronSpec, func() { c.produce(spec) })
	if err != nil {
		return fmt.Errorf("failed to add cron entry %q: %w", spec.Name, err)
	}

	c.schedules[spec.Name] = spec
	c.entries[spec.Name] = entryID
	return nil
}

// Unschedule removes a named recurring rule.
func (c *CronScheduler) Unschedule(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entryID, ok := c.entries[name]; ok {
		c.cron.Remove(entryID)
		delete(c.entries, name)
		delete(c.schedules, name)
	}
}

// produce enqueues one job for spec. A QUEUE_FULL (or any other) error
// is logged and dropped — there is no client request to fail back to
// (SPEC_FULL.md §4.10).
func (c *CronScheduler) produce(spec ScheduleSpec) {
	opts := queue.CreateOptions{MaxAttempts: spec.MaxAttempts}
	if _, err := c.manager.CreateJob(spec.JobType, spec.Payload, opts); err != nil {
		if c.log != nil {
			c.log.Warn("cron tick dropped", "schedule", spec.Name, "error", err)
		}
	}
}

// Start begins firing scheduled ticks. Idempotent.
func (c *CronScheduler) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.cron.Start()
	c.running = true
}

// Stop halts the cron scheduler, waiting for any in-progress tick
// callback (cron entry functions only enqueue, so this returns almost
// immediately) to finish. Idempotent.
func (c *CronScheduler) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	ctx := c.cron.Stop()
	<-ctx.Done()
}

// ListSchedules returns the currently registered rules.
func (c *CronScheduler) ListSchedules() []ScheduleSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ScheduleSpec, 0, len(c.schedules))
	for _, spec := range c.schedules {
		out = append(out, spec)
	}
	return out
}
