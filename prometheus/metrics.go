package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters per principal type
	LoginCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experts_login_total",
			Help: "Total number of login attempts by principal type",
		},
		[]string{"principal"}, // "master", "workspace", "expert", "voter"
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experts_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experts_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // "login_failure", "invalid_token", "rate_limited" etc.
	)

	// Rate limiter block counter
	RateLimitBlockCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "experts_rate_limit_blocks_total",
			Help: "Total number of requests blocked by the rate limiter",
		},
	)

	// Scheduling state transition counter
	StateTransitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experts_state_transitions_total",
			Help: "Total number of expert scheduling state transitions",
		},
		[]string{"transition"}, // "start_polling", "confirm", "select_slot", "decline", "reset"
	)

	// Vote submission counter
	VoteCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "experts_votes_total",
			Help: "Total number of vote submissions",
		},
	)

	// Retention sweep counter
	RetentionSweepCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "experts_retention_sweeps_total",
			Help: "Total number of retention sweeps executed",
		},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "experts_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)
)

// Gauge metrics
var (
	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "experts_info",
			Help: "Information about the experts service",
		},
		[]string{"version"},
	)

	// Active workspaces
	WorkspacesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "experts_workspaces",
			Help: "Number of registered workspaces",
		},
	)
)

func init() {
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(RateLimitBlockCounter)
	prometheus.MustRegister(StateTransitionCounter)
	prometheus.MustRegister(VoteCounter)
	prometheus.MustRegister(RetentionSweepCounter)

	prometheus.MustRegister(RequestDuration)

	prometheus.MustRegister(InfoGauge)
	prometheus.MustRegister(WorkspacesGauge)

	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordLogin records a login attempt by principal type
func RecordLogin(principal string) {
	LoginCounter.With(prometheus.Labels{"principal": principal}).Inc()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordRateLimitBlock records a rate limiter rejection
func RecordRateLimitBlock() {
	RateLimitBlockCounter.Inc()
}

// RecordStateTransition records a scheduling state transition
func RecordStateTransition(transition string) {
	StateTransitionCounter.With(prometheus.Labels{"transition": transition}).Inc()
}

// RecordVote records a vote submission
func RecordVote() {
	VoteCounter.Inc()
}

// RecordRetentionSweep records a completed retention sweep
func RecordRetentionSweep() {
	RetentionSweepCounter.Inc()
}

// UpdateWorkspaces updates the workspace count gauge
func UpdateWorkspaces(count int) {
	WorkspacesGauge.Set(float64(count))
}
