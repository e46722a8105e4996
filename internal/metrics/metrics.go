package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeNotFound           = "not_found"
	OutcomeExpired            = "expired"
	OutcomeError              = "error"
)

var Logins = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Login attempts by outcome",
	},
	[]string{"outcome"},
)

var Refreshes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_refreshes_total",
		Help: "Refresh attempts by outcome",
	},
	[]string{"outcome"},
)

var RefreshTokensSwept = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "auth_refresh_tokens_swept_total",
		Help: "Expired refresh tokens removed by the sweeper",
	},
)

var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_http_requests_total",
		Help: "HTTP requests by route and status",
	},
	[]string{"method", "route", "status"},
)

var HTTPDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "auth_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// RegisterMetrics panics on duplicate registration, following prometheus convention.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Logins, Refreshes, RefreshTokensSwept, HTTPRequests, HTTPDuration)
}

func RecordLogin(outcome string) {
	Logins.WithLabelValues(outcome).Inc()
}

func RecordRefresh(outcome string) {
	Refreshes.WithLabelValues(outcome).Inc()
}

func RecordSwept(n int64) {
	if n > 0 {
		RefreshTokensSwept.Add(float64(n))
	}
}

// Middleware labels by the matched route template so ids do not explode cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < 400 {
					status = 500
				}
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
