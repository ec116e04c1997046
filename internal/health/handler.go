package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler exposes the Monitor's Snapshot over HTTP, per spec.md §6
// GET /health.
type Handler struct {
	monitor *Monitor
}

// NewHandler builds the health HTTP handler.
func NewHandler(monitor *Monitor) *Handler {
	return &Handler{monitor: monitor}
}

// GetHealth returns the aggregated status document. Queue/pool/
// scheduler trouble degrades the reported status but this endpoint
// itself never fails: the Health Monitor is explicitly not on the
// critical path (spec.md §4.7).
func (h *Handler) GetHealth(c *gin.Context) {
	snap := h.monitor.Snapshot()

	status := "healthy"
	if snap.PoolStats.Total == 0 {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now(),
		"version":   snap.Version,
		"uptime":    snap.Uptime.String(),
		"counters": gin.H{
			"created":   snap.Counters.Created,
			"started":   snap.Counters.Started,
			"completed": snap.Counters.Completed,
			"failed":    snap.Counters.Failed,
			"retrying":  snap.Counters.Retrying,
			"dead":      snap.Counters.Dead,
		},
		"queue": gin.H{
			"total":     snap.QueueStats.Total,
			"by_status": snap.QueueStats.ByStatus,
		},
		"pool": gin.H{
			"total":     snap.PoolStats.Total,
			"available": snap.PoolStats.Available,
			"busy":      snap.PoolStats.Busy,
		},
		"scheduler": gin.H{
			"running":  snap.SchedulerRun,
			"inflight": snap.Inflight,
		},
		"system": gin.H{
			"go_version":    snap.System.GoVersion,
			"num_goroutine": snap.System.NumGoroutine,
			"num_cpu":       snap.System.NumCPU,
			"memory_alloc":  snap.System.MemoryAlloc,
			"memory_sys":    snap.System.MemorySys,
			"num_gc":        snap.System.NumGC,
		},
	})
}

// GetLiveness is a bare liveness probe for orchestrators.
func (h *Handler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "timestamp": time.Now()})
}
