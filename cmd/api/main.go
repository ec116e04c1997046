package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/fluxqueue/jobqueue/internal/config"
	"github.com/fluxqueue/jobqueue/internal/cron"
	"github.com/fluxqueue/jobqueue/internal/database"
	"github.com/fluxqueue/jobqueue/internal/health"
	"github.com/fluxqueue/jobqueue/internal/logger"
	"github.com/fluxqueue/jobqueue/internal/metrics"
	"github.com/fluxqueue/jobqueue/internal/queue"
	"github.com/fluxqueue/jobqueue/internal/routes"
	"github.com/fluxqueue/jobqueue/internal/scheduler"
	"github.com/fluxqueue/jobqueue/internal/shutdown"
	"github.com/fluxqueue/jobqueue/internal/worker"
	"github.com/fluxqueue/jobqueue/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting job queue service", "version", cfg.AppVersion)

	store := queue.NewStore(cfg.QueueMaxSize, cfg.MaxJobAttempts)
	bus := queue.NewBus(log.Named("events"))
	manager := queue.NewManager(store, bus, time.Duration(cfg.RetryBackoffBaseMS)*time.Millisecond)

	executors := map[string]worker.Executor{
		queue.JobTypeSendEmail: worker.NewEmailExecutor(cfg.SMTP.FromEmail, cfg.SMTP.FromName, log.Named("email")),
	}
	pool := worker.NewPool(cfg.WorkerPoolSize, cfg.WorkerInitTimeout, executors, log.Named("pool"))

	initCtx, cancelInit := context.WithTimeout(context.Background(), cfg.WorkerInitTimeout)
	if err := pool.Initialize(initCtx); err != nil {
		cancelInit()
		log.Fatal("failed to initialize worker pool", "error", err)
	}
	cancelInit()

	sched := scheduler.New(manager, pool, cfg.PollInterval, log.Named("scheduler"))
	cronSched := cron.New(manager, log.Named("cron"))

	if cfg.CronDigestSpec != "" {
		if err := cronSched.Schedule(cron.ScheduleSpec{
			Name:        "digest",
			CronSpec:    cfg.CronDigestSpec,
			JobType:     queue.JobTypeSendEmail,
			Payload:     map[string]interface{}{"to": cfg.SMTP.FromEmail, "subject": "digest", "body": "scheduled digest"},
			MaxAttempts: cfg.MaxJobAttempts,
		}); err != nil {
			log.Error("failed to register digest schedule", "error", err)
		}
	}

	db, err := database.Connect(cfg.AuditDBDSN)
	if err != nil {
		log.Error("failed to connect audit database, audit sink disabled", "error", err)
	} else if err := database.Migrate(db); err != nil {
		log.Error("failed to migrate audit database, audit sink disabled", "error", err)
	} else {
		bus.AddListener(database.NewAuditSink(db, log.Named("audit")))
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}

	monitor := health.NewMonitor(cfg.AppVersion, manager, pool, sched, cronSched, log.Named("health"))
	bus.AddListener(monitor)
	healthStop := make(chan struct{})
	go monitor.LogPeriodically(cfg.HealthLogInterval, healthStop)
	healthHandler := health.NewHandler(monitor)

	registry := metrics.NewRegistry()
	bus.AddListener(registry)
	metricsStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-metricsStop:
				return
			case <-ticker.C:
				stats := manager.Stats()
				registry.SetQueueSize(stats.Total)
				poolStats := pool.Stats()
				registry.SetPoolStats(poolStats.Total, poolStats.Busy)
			}
		}
	}()

	var hub *ws.Hub
	if cfg.WebSocket.Enabled {
		hub = ws.New(cfg.WebSocket.MaxConnections, log.Named("ws"))
	} else {
		hub = ws.New(0, log.Named("ws"))
	}
	bus.AddListener(hub)

	gin.SetMode(ginMode(cfg.AppEnv))
	router := gin.New()
	router.Use(gin.Recovery())
	routes.SetupRoutes(&router.RouterGroup, rdb, cfg, log, manager, sched, cronSched, healthHandler, hub)

	httpServer := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	schedCtx, cancelSched := context.WithCancel(context.Background())
	go sched.Run(schedCtx)
	cronSched.Start()

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", "error", err)
		}
	}()
	log.Info("http server started", "addr", httpServer.Addr)

	coordinator := shutdown.New(cfg.ShutdownTimeout, log.Named("shutdown"))

	coordinator.Register("scheduler", func(ctx context.Context) error {
		sched.Pause()
		sched.Stop()
		sched.WaitForActiveExecutions()
		cancelSched()
		return nil
	})
	coordinator.Register("cron", func(ctx context.Context) error {
		cronSched.Stop()
		return nil
	})
	coordinator.Register("ws_hub", func(ctx context.Context) error {
		return hub.Stop()
	})
	coordinator.Register("worker_pool", func(ctx context.Context) error {
		return pool.Shutdown(ctx)
	})
	coordinator.Register("http_server", func(ctx context.Context) error {
		return httpServer.Shutdown(ctx)
	})
	coordinator.Register("background_loops", func(ctx context.Context) error {
		close(healthStop)
		close(metricsStop)
		return nil
	})

	code := coordinator.ListenForSignals(context.Background())
	log.Info("shutdown complete", "exit_code", code)
	os.Exit(code)
}

func ginMode(appEnv string) string {
	if appEnv == "production" {
		return gin.ReleaseMode
	}
	return gin.DebugMode
}
