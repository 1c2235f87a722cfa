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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/stall-dashboard/internal/config"
	"github.com/iliyamo/stall-dashboard/internal/database"
	"github.com/iliyamo/stall-dashboard/internal/handler"
	"github.com/iliyamo/stall-dashboard/internal/logging"
	"github.com/iliyamo/stall-dashboard/internal/metrics"
	"github.com/iliyamo/stall-dashboard/internal/middleware"
	"github.com/iliyamo/stall-dashboard/internal/queue"
	"github.com/iliyamo/stall-dashboard/internal/repository"
	"github.com/iliyamo/stall-dashboard/internal/router"
	"github.com/iliyamo/stall-dashboard/internal/service"
)

// redisPinger adapts the redis client to handler.Pinger.
type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) PingContext(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("connect mysql", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	stalls := repository.NewStallRepo(db)
	rentals := repository.NewRentalRepo(db)
	payments := repository.NewPaymentRepo(db)
	expenses := repository.NewExpenseRepo(db)

	deps := map[string]handler.Pinger{"mysql": db}
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
		deps["redis"] = redisPinger{rdb}
	} else {
		logger.Warn("redis unavailable; rate limiting and caching disabled")
	}

	qcfg := config.LoadQueueConfig()
	var events handler.EventPublisher
	if qcfg.URL != "" {
		events = service.NewPublisher(qcfg.URL, qcfg.PaymentQueue)
	}
	if qcfg.ConsumerEnabled {
		c := &queue.Consumer{URL: qcfg.URL, Queue: qcfg.PaymentQueue, LogDir: qcfg.PaymentLogDir, Logger: logger}
		go func() {
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("payment consumer stopped", slog.Any("error", err))
			}
		}()
	}

	collector := metrics.New("stall_dashboard")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.Secure())
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(collector.Middleware())

	router.RegisterRoutes(e, &handler.HealthHandler{Deps: deps}, collector.Handler())
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, logger), cfg.JWTSecret)
	router.RegisterDashboard(e,
		handler.NewDashboardHandler(stalls, rentals, payments, expenses, events, logger),
		router.DashboardDeps{
			JWTSecret: cfg.JWTSecret,
			Logger:    logger,
			RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
			Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		})

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", slog.String("addr", addr), slog.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
	logger.Info("stopped")
}
