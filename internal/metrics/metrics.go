// Package metrics implements the Metrics Registry: a Prometheus
// collector set fed by the Event Bus, per SPEC_FULL.md §4.8.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fluxqueue/jobqueue/internal/queue"
)

// Registry holds every collector this service exposes at GET /metrics.
type Registry struct {
	jobsTotal      *prometheus.CounterVec
	queueSize      prometheus.Gauge
	workerBusy     prometheus.Gauge
	workerPoolSize prometheus.Gauge
	jobDuration    *prometheus.HistogramVec
	dispatchTotal  prometheus.Counter

	mu         sync.Mutex
	startedAt  map[string]time.Time
}

// NewRegistry builds and registers all collectors against the default
// Prometheus registry, matching how the teacher pack wires promauto
// collectors elsewhere in the stack.
func NewRegistry() *Registry {
	return &Registry{
		jobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jobqueue_jobs_total",
			Help: "Count of job lifecycle transitions, labeled by resulting status.",
		}, []string{"status"}),
		queueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jobqueue_queue_size",
			Help: "Current total number of jobs held in the Job Store.",
		}),
		workerBusy: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jobqueue_worker_busy",
			Help: "Current number of busy workers in the Worker Pool.",
		}),
		workerPoolSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jobqueue_worker_pool_size",
			Help: "Current total number of workers in the Worker Pool.",
		}),
		jobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobqueue_job_duration_seconds",
			Help:    "Time from a job's first startJob to its terminal transition, labeled by job type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		dispatchTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobqueue_dispatch_total",
			Help: "Count of Scheduler dispatches handed to the Worker Pool.",
		}),
		startedAt: make(map[string]time.Time),
	}
}

// OnEvent implements queue.Listener, recording every transition. A
// panic here is recovered so metrics recording can never affect job
// processing (SPEC_FULL.md §4.8).
func (r *Registry) OnEvent(ev queue.Event) {
	defer func() { _ = recover() }()

	switch ev.Topic {
	case queue.TopicCreated:
		r.jobsTotal.WithLabelValues("created").Inc()
	case queue.TopicStarted:
		r.jobsTotal.WithLabelValues("started").Inc()
		r.dispatchTotal.Inc()
		if ev.Job != nil {
			r.mu.Lock()
			if _, seen := r.startedAt[ev.Job.ID.String()]; !seen {
				r.startedAt[ev.Job.ID.String()] = time.Now()
			}
			r.mu.Unlock()
		}
	case queue.TopicCompleted:
		r.jobsTotal.WithLabelValues("completed").Inc()
		r.observeDuration(ev.Job)
	case queue.TopicFailed:
		r.jobsTotal.WithLabelValues("failed").Inc()
	case queue.TopicRetrying:
		r.jobsTotal.WithLabelValues("retrying").Inc()
	case queue.TopicDead:
		r.jobsTotal.WithLabelValues("dead").Inc()
		r.observeDuration(ev.Job)
	}
}

func (r *Registry) observeDuration(job *queue.Job) {
	if job == nil {
		return
	}
	key := job.ID.String()
	r.mu.Lock()
	start, ok := r.startedAt[key]
	if ok {
		delete(r.startedAt, key)
	}
	r.mu.Unlock()
	if ok {
		r.jobDuration.WithLabelValues(job.Type).Observe(time.Since(start).Seconds())
	}
}

// SetQueueSize updates the queue size gauge from a Store snapshot.
func (r *Registry) SetQueueSize(n int) {
	r.queueSize.Set(float64(n))
}

// SetPoolStats updates the worker gauges from a Pool snapshot.
func (r *Registry) SetPoolStats(total, busy int) {
	r.workerPoolSize.Set(float64(total))
	r.workerBusy.Set(float64(busy))
}
