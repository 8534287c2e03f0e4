package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/costplan/internal/app"
	"github.com/odyssey-erp/costplan/internal/costplan"
	"github.com/odyssey-erp/costplan/internal/costplan/export"
	costplanhttp "github.com/odyssey-erp/costplan/internal/costplan/http"
	"github.com/odyssey-erp/costplan/internal/observability"
	"github.com/odyssey-erp/costplan/internal/platform/cache"
	"github.com/odyssey-erp/costplan/internal/platform/db"
	"github.com/odyssey-erp/costplan/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	if cfg.DBMigrateOnStart && !app.InTestMode() {
		if err := db.Migrate(cfg.PGDSN); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var reportCache *costplan.Cache
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		reportCache = costplan.NewCache(redisClient, cfg.ReportCacheTTL).WithLogger(logger)
	}

	metrics := observability.NewMetrics()
	service := costplan.NewService(costplan.NewRepository(pool), reportCache, costplan.ServiceConfig{
		MaxNumberAttempts: cfg.VariationNumberMaxAttempts,
		Logger:            logger,
		Metrics:           metrics.Jobs(),
	})

	formatter, err := export.NewFormatter(language.English, cfg.CurrencyCode)
	if err != nil {
		logger.Error("init formatter", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()

	health := map[string]app.HealthChecker{
		"postgres": func(r *http.Request) error { return pool.Ping(r.Context()) },
	}
	if redisClient != nil {
		health["redis"] = func(r *http.Request) error { return redisClient.Ping(r.Context()).Err() }
	}

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		CostPlanHandler: costplanhttp.NewHandler(logger, service, jobClient, formatter),
		JobHandler:      jobs.NewHandler(inspector, logger),
		Metrics:         metrics,
		Health:          health,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
