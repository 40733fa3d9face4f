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

	"taskhub/internal/audit"
	"taskhub/internal/auth"
	"taskhub/internal/auth/login"
	"taskhub/internal/config"
	"taskhub/internal/httpapi"
	"taskhub/internal/metrics"
	"taskhub/internal/migrations"
	"taskhub/internal/queue"
	"taskhub/internal/ratelimit"
	"taskhub/internal/task"
	"taskhub/internal/user"
	"taskhub/pkg/logger"
	"taskhub/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		if err := migrations.Up(db); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		if v, dirty, err := migrations.Version(db); err == nil {
			log.Info("schema ready", "version", v, "dirty", dirty)
		}
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s, err := newServer(cfg, deps{
		log:     log,
		rdb:     rdb,
		metrics: metrics.New(reg),
		hasher:  auth.NewHasher(),
		users:   user.NewPostgresRepository(db),
		tasks:   task.NewPostgresRepository(db),
		audit:   audit.NewPostgresRepository(db),
		ready: map[string]httpapi.Checker{
			"postgres": func(ctx context.Context) error { return utils.HealthCheck(ctx, db, time.Second) },
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})
	if err != nil {
		log.Error("server init failed", "err", err)
		os.Exit(1)
	}

	r, err := newRouter(s)
	if err != nil {
		log.Error("router init failed", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// deps are the process-level resources newServer builds services on.
type deps struct {
	log     *slog.Logger
	rdb     *redis.Client
	metrics *metrics.Metrics
	hasher  *auth.Hasher

	users user.Repository
	tasks task.Repository
	audit audit.Repository

	ready map[string]httpapi.Checker
}

func newServer(cfg config.Config, d deps) (*server, error) {
	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return nil, err
	}

	jobs := queue.NewClient(d.rdb, cfg.Queue.Name)
	auditSvc := audit.NewService(d.audit)
	users := user.NewService(d.users, d.hasher, auditSvc)

	loginSvc, err := login.NewService(users, tokens, d.hasher, login.Options{
		Audit:   auditSvc,
		Jobs:    jobs,
		Observe: d.metrics.ObserveLogin,
	})
	if err != nil {
		return nil, err
	}

	tasks := task.NewService(d.tasks, task.Options{
		Jobs:      jobs,
		OnCreated: d.metrics.TaskCreated,
	})

	return &server{
		log:      d.log,
		webDir:   cfg.App.WebDir,
		metrics:  d.metrics,
		enforcer: auth.NewEnforcer(tokens, d.metrics.ObserveTokenVerification),
		users:    users,
		login:    loginSvc,
		tasks:    tasks,
		authLimit: ratelimit.New(d.rdb, ratelimit.Options{
			Scope:    "auth",
			Limit:    cfg.RateLimit.AuthRequests,
			Window:   cfg.RateLimit.AuthWindow,
			Key:      ratelimit.ByClientIP,
			OnReject: d.metrics.RateLimitRejected,
		}),
		apiLimit: ratelimit.New(d.rdb, ratelimit.Options{
			Scope:    "api",
			Limit:    cfg.RateLimit.APIRequests,
			Window:   cfg.RateLimit.APIWindow,
			Key:      ratelimit.ByUser,
			OnReject: d.metrics.RateLimitRejected,
		}),
		ready: d.ready,
	}, nil
}
