package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/costplan/internal/app"
	"github.com/odyssey-erp/costplan/internal/costplan"
	jobmetrics "github.com/odyssey-erp/costplan/internal/jobs"
	"github.com/odyssey-erp/costplan/internal/platform/cache"
	"github.com/odyssey-erp/costplan/internal/platform/db"
	"github.com/odyssey-erp/costplan/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var reportCache *costplan.Cache
	if redisClient, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	} else {
		defer func() { _ = redisClient.Close() }()
		reportCache = costplan.NewCache(redisClient, cfg.ReportCacheTTL).WithLogger(logger)
	}

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)
	service := costplan.NewService(costplan.NewRepository(pool), reportCache, costplan.ServiceConfig{
		MaxNumberAttempts: cfg.VariationNumberMaxAttempts,
		Logger:            logger,
		Metrics:           metrics,
	})
	snapshotJob := costplan.NewSnapshotJob(service, logger, metrics)

	var cron []jobs.CronRegistration
	if cfg.SnapshotCron != "" {
		nightlyTask, err := jobs.NewCostReportNightlyTask("")
		if err != nil {
			logger.Error("build nightly snapshot task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.SnapshotCron,
			Task:    nightlyTask,
			Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCostReportSnapshot, Handler: snapshotJob.Handle},
			{Type: jobs.TaskCostReportNightly, Handler: snapshotJob.HandleNightly},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.Int("cron_entries", len(cron)))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
