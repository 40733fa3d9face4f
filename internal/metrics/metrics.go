// Package metrics holds the Prometheus collectors for the API and the worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	tokenVerifications *prometheus.CounterVec
	logins             *prometheus.CounterVec
	tasksCreated       prometheus.Counter
	jobsProcessed      *prometheus.CounterVec
	rateLimitRejects   *prometheus.CounterVec
}

// New registers every collector on reg. Pass a fresh prometheus.NewRegistry()
// in tests; registering twice on the same registry panics.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route template and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route template.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		tokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_token_verifications_total",
			Help: "Bearer token checks by enforcer mode and result.",
		}, []string{"mode", "result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasks_created_total",
			Help: "Tasks created.",
		}),
		jobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_jobs_processed_total",
			Help: "Background jobs processed by job name and result.",
		}, []string{"job", "result"}),
		rateLimitRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter, by scope.",
		}, []string{"scope"}),
	}
	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.tokenVerifications,
		m.logins,
		m.tasksCreated,
		m.jobsProcessed,
		m.rateLimitRejects,
	)
	return m
}

// Middleware records request count and latency. Unmatched routes share one label.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveTokenVerification matches auth.VerificationObserver.
func (m *Metrics) ObserveTokenVerification(mode, result string) {
	m.tokenVerifications.WithLabelValues(mode, result).Inc()
}

func (m *Metrics) ObserveLogin(result string) {
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) TaskCreated() {
	m.tasksCreated.Inc()
}

// ObserveJob matches queue.WorkerOptions.Observe.
func (m *Metrics) ObserveJob(job, result string) {
	m.jobsProcessed.WithLabelValues(job, result).Inc()
}

func (m *Metrics) RateLimitRejected(scope string) {
	m.rateLimitRejects.WithLabelValues(scope).Inc()
}
