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

	"taskhub/internal/config"
	"taskhub/internal/jobs"
	"taskhub/internal/metrics"
	"taskhub/internal/queue"
	"taskhub/internal/user"
	"taskhub/pkg/logger"
	"taskhub/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env).With("component", "worker")
	slog.SetDefault(log)

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: 5, MaxIdleConns: 5})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	users := user.NewPostgresRepository(db)
	registry := queue.NewRegistry()
	handlers := jobs.Handlers{
		Mailer: jobs.LogMailer{Logger: log},
		OwnerEmail: func(ctx context.Context, userID string) (string, error) {
			u, err := users.GetByID(ctx, userID)
			if errors.Is(err, user.ErrNotFound) {
				return "", jobs.ErrMissingRecipient
			}
			if err != nil {
				return "", err
			}
			return u.Email, nil
		},
	}
	if err := handlers.Register(registry); err != nil {
		log.Error("job registration failed", "err", err)
		os.Exit(1)
	}

	metricsSrv := &http.Server{
		Addr:              cfg.WorkerMetricsAddr(),
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("worker metrics listening", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "err", err)
		}
	}()

	w := queue.NewWorker(rdb, registry, queue.WorkerOptions{
		Queue:       cfg.Queue.Name,
		MaxAttempts: cfg.Queue.MaxAttempts,
		Logger:      log,
		Observe:     m.ObserveJob,
	})
	if err := w.Run(rootCtx); err != nil {
		log.Error("worker failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
