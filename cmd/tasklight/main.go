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
	"golang.org/x/sync/errgroup"

	"github.com/tasklight/tasklight/internal/app"
	"github.com/tasklight/tasklight/internal/auth"
	"github.com/tasklight/tasklight/internal/observability"
	"github.com/tasklight/tasklight/internal/platform/cache"
	"github.com/tasklight/tasklight/internal/platform/db"
	"github.com/tasklight/tasklight/internal/shared"
	"github.com/tasklight/tasklight/internal/tasks"
	"github.com/tasklight/tasklight/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The session cache is optional: with Redis down every resolve goes to
	// postgres.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, session cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		// Kick off a sweep now rather than waiting for the next cron tick.
		enqueueStartupSweep(ctx, logger, cfg.RedisAddr)
	}

	authRepo := auth.NewRepository(pool)
	sessionManager := shared.NewSessionManager(authRepo, redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	authService := auth.NewService(authRepo, auth.NewHasher(cfg.BcryptCost))
	authHandler := auth.NewHandler(logger, authService, sessionManager)
	gate := auth.NewGate(logger, sessionManager, authService)

	taskRepo := tasks.NewRepository(pool)
	taskService := tasks.NewService(taskRepo)
	taskHandler := tasks.NewHandler(logger, taskService)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		Gate:        gate,
		AuthHandler: authHandler,
		TaskHandler: taskHandler,
		Metrics:     metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}

func enqueueStartupSweep(ctx context.Context, logger *slog.Logger, redisAddr string) {
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	if err != nil {
		logger.Warn("init job client", slog.Any("error", err))
		return
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	if _, err := client.EnqueueSessionSweep(ctx); err != nil {
		logger.Warn("enqueue session sweep", slog.Any("error", err))
	}
}
