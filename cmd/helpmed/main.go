// Package main запускает HTTP-сервер сервиса HelpMED.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/helpmed-dispatch/internal/config"
	"github.com/mmeshcher/helpmed-dispatch/internal/handler"
	"github.com/mmeshcher/helpmed-dispatch/internal/metrics"
	"github.com/mmeshcher/helpmed-dispatch/internal/middleware"
	"github.com/mmeshcher/helpmed-dispatch/internal/notify"
	"github.com/mmeshcher/helpmed-dispatch/internal/persist"
	"github.com/mmeshcher/helpmed-dispatch/internal/repository"
	"github.com/mmeshcher/helpmed-dispatch/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	loc, err := cfg.Location()
	if err != nil {
		sugar.Fatalw("timezone error", "error", err.Error())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	queue := persist.NewQueue(cfg.PersistQueueSize, logger.Named("persist"), m)

	opts := store.Options{
		Queue:    queue,
		Metrics:  m,
		Logger:   logger.Named("store"),
		Location: loc,
	}

	var repo *repository.PostgresRepository
	if cfg.DatabaseURI != "" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		defer repo.Close()
		opts.Repository = repo
	} else {
		sugar.Warn("DATABASE_URI is not set, state is kept in memory only")
	}

	if cfg.NotifyAPIAddress != "" {
		opts.Notifier = notify.NewClient(cfg.NotifyAPIAddress)
	}

	st := store.New(opts)

	if repo != nil {
		loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		snap, err := repo.LoadSnapshot(loadCtx)
		cancel()
		if err != nil {
			sugar.Fatalw("state load error", "error", err.Error())
		}
		st.Hydrate(snap)
	}

	if cfg.AdminPassword != "" {
		created, err := st.BootstrapAdmin(context.Background(), cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			sugar.Fatalw("admin bootstrap error", "error", err.Error())
		}
		if created {
			sugar.Infow("admin account created", "username", cfg.AdminUsername)
		}
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(st, logger, authMiddleware, handler.Options{
		Failures:  queue,
		Metrics:   m,
		Gatherer:  reg,
		LoginRate: cfg.LoginRatePerSecond,
	})

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая запись в хранилище и отправка уведомлений
	g.Go(func() error {
		queue.Run(ctx)
		sugar.Infow("persist queue stopped", "failures", len(queue.Failures()))
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting helpmed server", "addr", cfg.RunAddress)
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
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
