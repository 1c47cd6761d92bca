package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/biztime/internal/app"
	"github.com/odyssey-erp/biztime/internal/companies"
	"github.com/odyssey-erp/biztime/internal/observability"
	"github.com/odyssey-erp/biztime/internal/platform/cache"
	"github.com/odyssey-erp/biztime/internal/platform/db"
	"github.com/odyssey-erp/biztime/jobs"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	metrics := observability.NewMetrics()
	if err := metrics.RegisterPool(pool); err != nil {
		logger.Warn("register pool metrics", slog.Any("error", err))
	}

	var (
		companyCache *companies.Cache
		events       companies.EventPublisher
		jobHandler   *jobs.Handler
	)
	if cfg.CacheEnabled() {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, running without cache and events", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
			companyCache = companies.NewCache(redisClient, cfg.CacheTTL)

			redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
			jobClient := jobs.NewClient(redisOpts)
			defer func() {
				if err := jobClient.Close(); err != nil {
					logger.Warn("job client close", slog.Any("error", err))
				}
			}()
			events = jobClient

			inspector := asynq.NewInspector(redisOpts)
			defer func() {
				if err := inspector.Close(); err != nil {
					logger.Warn("inspector close", slog.Any("error", err))
				}
			}()
			jobHandler = jobs.NewHandler(inspector, logger)
		}
	}
	if jobHandler == nil {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	companyRepo := companies.NewRepository(pool)
	companyService := companies.NewService(companyRepo, companyCache, events, logger)
	companyHandler := companies.NewHandler(logger, companyService, cfg.StrictStatusCodes)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		CompaniesHandler: companyHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
		DB:               pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return err
	}
	return nil
}
