package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/payment"
)

// Metrics holds the prometheus collectors of the API, registered on their own registry.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	payments        *prometheus.CounterVec
	collected       *prometheus.CounterVec
}

func NewMetrics(conf *core.Config) *Metrics {
	namespace := "edufee"
	constLabels := prometheus.Labels{"env": conf.Env, "build": conf.Build}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "Number of HTTP requests by method, route and status code.",
			ConstLabels: constLabels,
		}, []string{"method", "path", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latencies by method and route.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "path"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "payments_recorded_total",
			Help:        "Number of recorded payments by method.",
			ConstLabels: constLabels,
		}, []string{"method"}),
		collected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "amount_collected_minor_total",
			Help:        "Collected amounts in minor currency units by method.",
			ConstLabels: constLabels,
		}, []string{"method"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.payments,
		m.collected,
	)
	return m
}

// Handler serves the collected metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PaymentRecorded is a payment.RecordedHook counting recorded payments.
func (m *Metrics) PaymentRecorded(_ context.Context, p payment.Payment) {
	m.payments.WithLabelValues(p.Method).Inc()
	m.collected.WithLabelValues(p.Method).Add(float64(p.Amount))
}

func (m *Metrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err) // commits the response so the status code is known
			}

			path := ctx.Path() // route pattern, keeps the label cardinality low
			if path == "" {
				path = "unmatched"
			}
			method := ctx.Request().Method
			code := strconv.Itoa(ctx.Response().Status)

			m.requests.WithLabelValues(method, path, code).Inc()
			m.requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
