// Package main запускает HTTP-сервер сервиса банка отходов.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/banksampah-system/internal/config"
	"github.com/mmeshcher/banksampah-system/internal/feed"
	"github.com/mmeshcher/banksampah-system/internal/handler"
	"github.com/mmeshcher/banksampah-system/internal/identity"
	"github.com/mmeshcher/banksampah-system/internal/logging"
	"github.com/mmeshcher/banksampah-system/internal/metrics"
	"github.com/mmeshcher/banksampah-system/internal/middleware"
	"github.com/mmeshcher/banksampah-system/internal/repository"
	"github.com/mmeshcher/banksampah-system/internal/service"
	"github.com/mmeshcher/banksampah-system/internal/wilayah"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
	} else {
		sugar.Warn("DATABASE_URI is empty, using in-memory storage")
		repo = repository.NewMemoryRepository()
	}

	var broker feed.Broker = feed.NewLocalBroker()
	if cfg.RedisAddress != "" {
		rdb, err := feed.ConnectRedis(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		broker = feed.NewRedisBroker(rdb, logger)
	}

	m := metrics.New()

	svc := service.NewService(repo, service.Options{
		Broker:         broker,
		Verifier:       identity.NewGoogleVerifier(cfg.GoogleClientID),
		Regions:        wilayah.NewClient(cfg.WilayahAddress),
		Metrics:        m,
		Logger:         logger,
		AdminSecretKey: cfg.AdminSecretKey,
	})
	defer svc.Close()

	if cfg.AdminSecretKey == "" {
		sugar.Warn("ADMIN_SECRET_KEY is empty, waste bank creation is disabled")
	}
	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is empty, sessions will not survive a restart")
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, m)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting banksampah server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("application terminated with error", zap.Error(err))
	}
}
