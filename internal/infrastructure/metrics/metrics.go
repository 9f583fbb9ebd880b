package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the engine. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	ReceivablesCreated prometheus.Counter
	ListingsCreated    *prometheus.CounterVec
	Trades             *prometheus.CounterVec
	EscrowDeposits     prometheus.Counter
	Payouts            prometheus.Counter
	PayoutFailures     *prometheus.CounterVec
	EventsPublished    prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "receivables_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "receivables_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ReceivablesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "receivables_created_total",
			Help: "Receivables minted",
		}),
		ListingsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "receivables_listings_created_total",
			Help: "Listings created per market",
		}, []string{"market"}),
		Trades: f.NewCounterVec(prometheus.CounterOpts{
			Name: "receivables_trades_total",
			Help: "Completed purchases per market",
		}, []string{"market"}),
		EscrowDeposits: f.NewCounter(prometheus.CounterOpts{
			Name: "receivables_escrow_deposits_total",
			Help: "Escrow deposits accepted",
		}),
		Payouts: f.NewCounter(prometheus.CounterOpts{
			Name: "receivables_payouts_total",
			Help: "Receivables settled and paid out",
		}),
		PayoutFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "receivables_payout_failures_total",
			Help: "Rejected payout attempts by reason",
		}, []string{"reason"}),
		EventsPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "receivables_audit_events_published_total",
			Help: "Audit events relayed to the event stream",
		}),
	}
}

// Middleware records request counts and latency keyed by the route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			method := c.Request().Method
			m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(c.Response().Status)).Inc()
			m.RequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}
