package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/fluxqueue/jobqueue/internal/config"
	"github.com/fluxqueue/jobqueue/internal/cron"
	"github.com/fluxqueue/jobqueue/internal/health"
	"github.com/fluxqueue/jobqueue/internal/logger"
	"github.com/fluxqueue/jobqueue/internal/middleware"
	"github.com/fluxqueue/jobqueue/internal/queue"
	"github.com/fluxqueue/jobqueue/internal/scheduler"
	"github.com/fluxqueue/jobqueue/internal/ws"
)

// SetupRoutes wires every HTTP endpoint the service exposes, per
// spec.md §6 plus SPEC_FULL.md's added convenience and operational
// endpoints.
func SetupRoutes(
	router *gin.RouterGroup,
	rdb *redis.Client,
	cfg *config.Config,
	log *logger.Logger,
	manager *queue.Manager,
	sched *scheduler.Scheduler,
	cronSched *cron.CronScheduler,
	healthHandler *health.Handler,
	hub *ws.Hub,
) {
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders(middleware.APISecurityHeadersConfig()))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "job queue service",
			"version": cfg.AppVersion,
		})
	})

	router.GET("/health", healthHandler.GetHealth)
	router.GET("/health/live", healthHandler.GetLiveness)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/ws/jobs", func(c *gin.Context) {
		if err := hub.ServeWS(c.Writer, c.Request); err != nil && log != nil {
			log.Error("websocket upgrade failed", "error", err)
		}
	})

	jobsHandler := NewJobsHandler(manager, log)
	jobs := router.Group("/jobs")
	jobs.Use(middleware.Auth(cfg))
	{
		jobs.POST("/email", middleware.RateLimiter(rdb, cfg), jobsHandler.SubmitEmail)
		jobs.GET("", jobsHandler.ListJobs)
		jobs.GET("/:id", jobsHandler.GetJob)
	}

	schedulerRoutes := router.Group("/scheduler")
	schedulerRoutes.Use(middleware.Auth(cfg), middleware.StrictSecurityHeaders())
	{
		schedulerRoutes.POST("/pause", func(c *gin.Context) {
			sched.Pause()
			c.JSON(http.StatusOK, gin.H{"paused": true})
		})
		schedulerRoutes.POST("/resume", func(c *gin.Context) {
			sched.Resume()
			c.JSON(http.StatusOK, gin.H{"paused": false})
		})
		schedulerRoutes.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"paused":   sched.Paused(),
				"inflight": sched.InflightCount(),
			})
		})
	}

	cronRoutes := router.Group("/cron")
	cronRoutes.Use(middleware.Auth(cfg), middleware.StrictSecurityHeaders())
	{
		cronRoutes.GET("/schedules", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"schedules": cronSched.ListSchedules()})
		})
	}
}
