package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pos"

// Metrics holds the service collectors on a private registry so tests can
// build as many instances as they like.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	BillsCreated    prometheus.Counter
	BillsRejected   *prometheus.CounterVec
	SessionsCreated prometheus.Counter
	Confirmations   *prometheus.CounterVec
	StockDepleted   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		BillsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "billing", Name: "bills_created_total",
			Help: "Bills committed.",
		}),
		BillsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "billing", Name: "bills_rejected_total",
			Help: "Bills rejected, by reason.",
		}, []string{"reason"}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payment", Name: "sessions_created_total",
			Help: "Checkout sessions opened with the payment gateway.",
		}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payment", Name: "confirmations_total",
			Help: "Session confirmations, by outcome.",
		}, []string{"outcome"}),
		StockDepleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "catalog", Name: "stock_depleted_total",
			Help: "Decrements that brought a product's stock to zero.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPDuration,
		m.BillsCreated, m.BillsRejected,
		m.SessionsCreated, m.Confirmations,
		m.StockDepleted,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
