// Package metrics содержит Prometheus-метрики сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics объединяет коллекторы сервиса, зарегистрированные в одном реестре.
type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	PersistOps     *prometheus.CounterVec
	PersistBacklog prometheus.Gauge
	Entitlement    *prometheus.CounterVec
	RevenueTotal   prometheus.Gauge
}

// New создаёт и регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpmed",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "helpmed",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		PersistOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpmed",
			Name:      "persist_operations_total",
			Help:      "Persistence and notification operations by name and result.",
		}, []string{"op", "result"}),
		PersistBacklog: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "helpmed",
			Name:      "persist_queue_backlog",
			Help:      "Operations waiting in the persistence queue.",
		}),
		Entitlement: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpmed",
			Name:      "entitlement_decisions_total",
			Help:      "Service request decisions by service type and outcome.",
		}, []string{"service_type", "allowed"}),
		RevenueTotal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "helpmed",
			Name:      "revenue_total_centimos",
			Help:      "Completed revenue from the last ledger summary.",
		}),
	}
}
