package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	OrdersCreated   prometheus.Counter
	OrderRejections *prometheus.CounterVec
	Confirmations   *prometheus.CounterVec
	Compensations   *prometheus.CounterVec
	Cancellations   *prometheus.CounterVec
	OutboxRelayed   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers everything on reg. Tests pass a fresh prometheus.NewRegistry().
func New(service string, reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiosk",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kiosk",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kiosk",
			Subsystem: service,
			Name:      "orders_created_total",
			Help:      "Orders persisted.",
		}),
		OrderRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiosk",
			Subsystem: service,
			Name:      "order_rejections_total",
			Help:      "Order submissions rejected, by error code.",
		}, []string{"code"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiosk",
			Subsystem: service,
			Name:      "payment_confirmations_total",
			Help:      "Payment confirmations, by result.",
		}, []string{"result"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiosk",
			Subsystem: service,
			Name:      "payment_compensations_total",
			Help:      "Compensating gateway cancellations, by result.",
		}, []string{"result"}),
		Cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiosk",
			Subsystem: service,
			Name:      "order_cancellations_total",
			Help:      "Order cancellations, by result.",
		}, []string{"result"}),
		OutboxRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kiosk",
			Subsystem: service,
			Name:      "outbox_events_total",
			Help:      "Outbox events handed to the broker, by result.",
		}, []string{"result"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.Requests, m.LatencyMS,
		m.OrdersCreated, m.OrderRejections,
		m.Confirmations, m.Compensations, m.Cancellations,
		m.OutboxRelayed,
	)
	return m
}

// Nop returns metrics bound to a private registry, for code paths that do not export them.
func Nop() *Metrics {
	return New("nop", prometheus.NewRegistry())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			handler := c.Path()
			if handler == "" {
				handler = "unmatched"
			}
			m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
			return err
		}
	}
}
