// Package health implements the Health Monitor: an Event Bus observer
// that aggregates lifecycle counters and process metrics into a single
// status document, per spec.md §4.7.
package health

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxqueue/jobqueue/internal/cron"
	"github.com/fluxqueue/jobqueue/internal/logger"
	"github.com/fluxqueue/jobqueue/internal/queue"
	"github.com/fluxqueue/jobqueue/internal/scheduler"
	"github.com/fluxqueue/jobqueue/internal/worker"
)

// Counters is the Event Bus tally the Monitor keeps. Not on the
// critical path: a panic here must never affect job processing, so
// every increment is a plain atomic op with no locks shared with the
// rest of the system.
type Counters struct {
	Created   int64
	Started   int64
	Completed int64
	Failed    int64
	Retrying  int64
	Dead      int64
}

// Monitor aggregates Event Bus counts plus process and component
// snapshots into a single status document. The caller registers it as a
// synchronous Bus listener with Bus.AddListener.
type Monitor struct {
	startedAt time.Time
	version   string
	log       *logger.Logger

	pool    *worker.Pool
	sched   *scheduler.Scheduler
	cronSch *cron.CronScheduler
	manager *queue.Manager

	mu       sync.Mutex
	counters Counters
}

// NewMonitor builds a Monitor wired to the given components. It does
// not start any goroutine itself until LogPeriodically is launched.
func NewMonitor(version string, manager *queue.Manager, pool *worker.Pool, sched *scheduler.Scheduler, cronSch *cron.CronScheduler, log *logger.Logger) *Monitor {
	return &Monitor{
		startedAt: time.Now(),
		version:   version,
		manager:   manager,
		pool:      pool,
		sched:     sched,
		cronSch:   cronSch,
		log:       log,
	}
}

// OnEvent implements queue.Listener. Recovers internally so a bug here
// can never reach the Event Bus's own panic guard as anything but a
// no-op increment miss.
func (m *Monitor) OnEvent(ev queue.Event) {
	defer func() { _ = recover() }()

	switch ev.Topic {
	case queue.TopicCreated:
		atomic.AddInt64(&m.counters.Created, 1)
	case queue.TopicStarted:
		atomic.AddInt64(&m.counters.Started, 1)
	case queue.TopicCompleted:
		atomic.AddInt64(&m.counters.Completed, 1)
	case queue.TopicFailed:
		atomic.AddInt64(&m.counters.Failed, 1)
	case queue.TopicRetrying:
		atomic.AddInt64(&m.counters.Retrying, 1)
	case queue.TopicDead:
		atomic.AddInt64(&m.counters.Dead, 1)
	}
}

// Snapshot is the full aggregated status document.
type Snapshot struct {
	Status       string
	Version      string
	Uptime       time.Duration
	Counters     Counters
	QueueStats   queue.Stats
	PoolStats    worker.Stats
	SchedulerRun bool
	Inflight     int
	System       SystemInfo
}

// SystemInfo is lightweight runtime.MemStats-derived process info,
// mirroring the shape the teacher repo already exposes on its health
// endpoint.
type SystemInfo struct {
	GoVersion    string
	NumGoroutine int
	NumCPU       int
	MemoryAlloc  uint64
	MemorySys    uint64
	NumGC        uint32
}

// Snapshot assembles the current status document. Never returns an
// error: component stats calls are all synchronous and side-effect
// free, and a nil component is simply omitted from the snapshot.
func (m *Monitor) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snap := Snapshot{
		Status:  "healthy",
		Version: m.version,
		Uptime:  time.Since(m.startedAt),
		Counters: Counters{
			Created:   atomic.LoadInt64(&m.counters.Created),
			Started:   atomic.LoadInt64(&m.counters.Started),
			Completed: atomic.LoadInt64(&m.counters.Completed),
			Failed:    atomic.LoadInt64(&m.counters.Failed),
			Retrying:  atomic.LoadInt64(&m.counters.Retrying),
			Dead:      atomic.LoadInt64(&m.counters.Dead),
		},
		System: SystemInfo{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			NumCPU:       runtime.NumCPU(),
			MemoryAlloc:  mem.Alloc,
			MemorySys:    mem.Sys,
			NumGC:        mem.NumGC,
		},
	}

	if m.manager != nil {
		snap.QueueStats = m.manager.Stats()
	}
	if m.pool != nil {
		snap.PoolStats = m.pool.Stats()
	}
	if m.sched != nil {
		snap.SchedulerRun = !m.sched.Paused()
		snap.Inflight = m.sched.InflightCount()
	}

	return snap
}

// LogPeriodically emits one summary log line per interval until stop
// is closed. Intended to be launched with `go monitor.LogPeriodically(...)`.
func (m *Monitor) LogPeriodically(interval time.Duration, stop <-chan struct{}) {
	if m.log == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := m.Snapshot()
			m.log.Info("health summary",
				"uptime", snap.Uptime,
				"created", snap.Counters.Created,
				"completed", snap.Counters.Completed,
				"dead", snap.Counters.Dead,
				"queue_total", snap.QueueStats.Total,
				"pool_busy", snap.PoolStats.Busy,
				"inflight", snap.Inflight,
			)
		}
	}
}
