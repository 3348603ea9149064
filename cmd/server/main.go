package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/wedding-table/seating-server/internal/auth"
	"github.com/wedding-table/seating-server/internal/config"
	"github.com/wedding-table/seating-server/internal/database"
	"github.com/wedding-table/seating-server/internal/logging"
	"github.com/wedding-table/seating-server/internal/queue"
	"github.com/wedding-table/seating-server/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		Driver: cfg.DBDriver,
		User:   cfg.DBUser,
		Pass:   cfg.DBPass,
		Host:   cfg.DBHost,
		Port:   cfg.DBPort,
		Name:   cfg.DBName,
		Path:   cfg.DBPath,
	})
	if err != nil {
		logger.Error("open database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.CreateSchema(ctx, db); err != nil {
			logger.Error("create schema", "error", err)
			os.Exit(1)
		}
	}

	// Redis is optional: without it tokens are not revocable and requests
	// are not rate limited.
	rdb := config.NewRedisClient(ctx, config.LoadRedisConfig())
	var revocations auth.RevocationStore
	if rdb != nil {
		defer rdb.Close()
		revocations = auth.NewRedisRevocationStore(rdb)
	} else {
		logger.Warn("redis unavailable; token revocation and rate limiting disabled")
	}

	verifier := auth.NewFirebaseVerifier(cfg.FirebaseProjectID,
		auth.NewCertificateSource(cfg.FirebaseCertsURL, nil), revocations)

	var pub queue.Publisher = queue.NopPublisher{}
	if cfg.AuditEnabled {
		amqpPub := queue.NewAMQPPublisher(cfg.AMQPURL, logger)
		defer amqpPub.Close()
		pub = amqpPub
	}
	if cfg.AuditConsumerEnabled {
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.AMQPURL, cfg.AuditLogPath, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	e := router.New(router.Deps{
		DB:          db,
		Verifier:    verifier,
		Revocations: revocations,
		Publisher:   pub,
		Redis:       rdb,
		RateLimit:   config.LoadRateLimitConfig(),
		CORSOrigins: cfg.CORSAllowOrigins,
		APIPrefix:   cfg.APIPrefix,
		Logger:      logger,
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "driver", cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
