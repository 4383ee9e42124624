package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/visit-reservation/internal/config"
	"github.com/iliyamo/visit-reservation/internal/database"
	"github.com/iliyamo/visit-reservation/internal/handler"
	"github.com/iliyamo/visit-reservation/internal/logging"
	"github.com/iliyamo/visit-reservation/internal/middleware"
	"github.com/iliyamo/visit-reservation/internal/queue"
	"github.com/iliyamo/visit-reservation/internal/repository"
	"github.com/iliyamo/visit-reservation/internal/router"
	"github.com/iliyamo/visit-reservation/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database ready", "driver", dialect)

	rdb := config.NewRedisClient(ctx)
	if rdb != nil {
		defer rdb.Close()
	} else {
		logger.Warn("redis unavailable: rate limiting, response cache and settings cache disabled")
	}

	var emitter service.Emitter = service.NopEmitter{}
	if cfg.RabbitMQURL != "" {
		publisher := queue.NewPublisher(cfg.RabbitMQURL, logger)
		defer publisher.Close()
		async := queue.NewAsyncEmitter(publisher, cfg.EventBuffer, 5*time.Second, logger)
		defer func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := async.Close(drainCtx); err != nil {
				logger.Warn("event queue not drained", "error", err)
			}
		}()
		emitter = async
	}

	reservations := repository.NewReservationRepo(db, dialect)
	rules := repository.NewCapacityRuleRepo(db, dialect)
	settings := service.NewSettings(repository.NewSystemConfigRepo(db, dialect), rdb, cfg.SettingsCacheTTL, cfg.DefaultCapacity, logger)
	availability := service.NewAvailabilityService(rules, reservations, settings, logger)
	admission := service.NewAdmissionService(reservations, rules, settings, logger)
	lifecycle := service.NewLifecycleService(reservations, admission, emitter, logger)
	query := service.NewQueryService(reservations, cfg.ExportLimit)

	e := newEcho(cfg, logger, db, rdb,
		handler.NewPublicHandler(availability, admission, lifecycle, query, logger),
		handler.NewAdminHandler(availability, lifecycle, query, settings, logger),
		handler.NewAuthHandler(cfg.AdminEmail, cfg.AdminPasswordHash, cfg.JWTSecret, cfg.AccessTTL(), logger),
	)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func openStore(cfg config.Config) (*sql.DB, repository.Dialect, error) {
	dialect, err := repository.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, "", err
	}
	var db *sql.DB
	switch dialect {
	case repository.SQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, "", fmt.Errorf("create sqlite dir: %w", err)
		}
		db, err = database.OpenSQLite(cfg.SQLitePath)
	default:
		db, err = database.OpenMySQL(cfg.MySQL())
	}
	if err != nil {
		return nil, "", err
	}
	return db, dialect, nil
}

func newEcho(cfg config.Config, logger *slog.Logger, db *sql.DB, rdb *redis.Client, public *handler.PublicHandler, admin *handler.AdminHandler, auth *handler.AuthHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)

	e.Use(
		echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}),
		middleware.RequestLogger(logger),
		echomw.Recover(),
		echomw.BodyLimit("1M"),
		middleware.Timeout(cfg.RequestTimeout),
	)

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger)

	router.RegisterRoutes(e, db)
	router.RegisterPublic(e, public, cache, limit)
	router.RegisterAuth(e, auth, limit)
	router.RegisterAdmin(e, admin, cfg.JWTSecret)
	return e
}
