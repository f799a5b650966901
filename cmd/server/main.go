// Command server runs the review takedown API.
//
// @title          Review Takedown API
// @version        1.0
// @description    Admin resolution workflow for vendor review-takedown requests.
// @BasePath       /api/v1
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/review-takedown-backend/internal/cache"
	"github.com/tbourn/review-takedown-backend/internal/config"
	httpapi "github.com/tbourn/review-takedown-backend/internal/http"
	"github.com/tbourn/review-takedown-backend/internal/notify"
	"github.com/tbourn/review-takedown-backend/internal/observability"
	"github.com/tbourn/review-takedown-backend/internal/repo"
	"github.com/tbourn/review-takedown-backend/internal/services"
	"github.com/tbourn/review-takedown-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version string

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	cfg.OTEL.Version = sysutil.FirstNonEmpty(version, cfg.OTEL.Version, "dev")

	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName, cfg.OTEL.Version)

	if err := run(cfg, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DBDriver, cfg.DBPath, cfg.DBDSN)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	var summary cache.SummaryCache = cache.NewMemory(cfg.SummaryCacheTTL)
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, using in-memory summary cache")
		} else {
			defer client.Close()
			summary = cache.NewRedis(client, cfg.SummaryCacheTTL)
		}
	}

	dispatcher := notify.NewDispatcher(db, notify.LogMailer{Log: logger}, cfg.NotifyQueueSize, logger)
	// Workers outlive the signal context so Close can drain the queue.
	dispatcher.Start(context.WithoutCancel(ctx), cfg.NotifyWorkers)
	// Covers early returns; shutdown closes it before the pool on the normal path.
	defer dispatcher.Close()

	ledger := services.NewLedger(db, cfg.IdempotencyTTL)
	go ledger.RunJanitor(ctx, cfg.IdempotencyPurgeInterval)

	svc := services.NewTakedownService(db, ledger, services.DBAuditSink{}, dispatcher, summary)
	svc.MaxRetries = cfg.ResolveMaxRetries
	svc.Log = &logger

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Service: svc, Ledger: ledger, Config: cfg})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("db", cfg.DBDriver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return shutdown(sctx, srv, dispatcher, db)
}

// shutdown stops HTTP intake, drains queued notifications and only then
// closes the pool, since in-app deliveries still write to the database.
func shutdown(ctx context.Context, srv *http.Server, dispatcher *notify.Dispatcher, db *gorm.DB) error {
	err := srv.Shutdown(ctx)
	dispatcher.Close()
	if sqlDB, derr := db.DB(); derr == nil {
		_ = sqlDB.Close()
	}
	return err
}
