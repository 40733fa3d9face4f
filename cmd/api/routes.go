package main

import (
	"log/slog"
	"time"

	"taskhub/internal/auth"
	"taskhub/internal/auth/login"
	"taskhub/internal/httpapi"
	"taskhub/internal/metrics"
	"taskhub/internal/ratelimit"
	"taskhub/internal/rbac"
	"taskhub/internal/task"
	"taskhub/internal/user"
	"taskhub/internal/web"
	"taskhub/pkg/logger"

	"github.com/gin-gonic/gin"
)

// server is everything the router needs. It is assembled in newServer.
type server struct {
	log      *slog.Logger
	webDir   string
	metrics  *metrics.Metrics
	enforcer *auth.Enforcer

	users *user.Service
	login *login.Service
	tasks *task.Service

	authLimit *ratelimit.Limiter
	apiLimit  *ratelimit.Limiter

	ready map[string]httpapi.Checker
}

// newRouter wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func newRouter(s *server) (*gin.Engine, error) {
	r := gin.New()
	// ClientIP is the socket peer; put a proxy-aware list here when deployed behind one.
	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(s.log))
	r.Use(s.metrics.Middleware())

	// public
	r.GET("/healthz", httpapi.Liveness)
	r.GET("/readyz", httpapi.Readiness(2*time.Second, s.ready))
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	required := s.enforcer.Require()
	optional := s.enforcer.Optional()
	perUser := s.apiLimit.Middleware()
	notBanned := rbac.RejectBanned(s.users)
	active := rbac.RequireActiveAccount(s.users)

	v1 := r.Group("/api/v1")

	// AUTH routes: limited per client IP before any credential work happens.
	{
		h := login.Handlers{Service: s.login}
		g := v1.Group("/auth", s.authLimit.Middleware())
		g.POST("/register", h.Register)
		g.POST("/login", h.Login)
		g.POST("/refresh", h.Refresh)
		g.GET("/me", required, h.Me)
	}

	// USER routes
	{
		h := user.Handlers{Service: s.users}
		g := v1.Group("/users")
		g.GET("/me", required, perUser, notBanned, h.Me)
		g.PATCH("/me", required, perUser, active, h.UpdateMe)
		g.PUT("/me/password", required, perUser, active, h.ChangePassword)
		g.GET("/:id", optional, perUser, h.Profile)
	}

	// TASK routes: reads are open to inactive accounts, writes are not.
	{
		h := task.Handlers{Service: s.tasks}
		g := v1.Group("/tasks", required, perUser, notBanned)
		g.GET("", h.List)
		g.GET("/summary", h.Summary)
		g.GET("/:id", h.Get)
		g.POST("", active, h.Create)
		g.PATCH("/:id", active, h.Update)
		g.DELETE("/:id", active, h.Delete)
	}

	// ADMIN routes
	{
		h := user.Handlers{Service: s.users}
		g := v1.Group("/admin", required, perUser, active, rbac.RequireAnyRole(s.users, user.RoleAdmin))
		g.GET("/users", h.List)
		g.PATCH("/users/:id/status", h.SetStatus)
	}

	if s.webDir == "" {
		r.NoRoute(web.NotFound)
		return r, nil
	}
	spa, err := web.SPA(s.webDir)
	if err != nil {
		return nil, err
	}
	r.NoRoute(spa)
	return r, nil
}
