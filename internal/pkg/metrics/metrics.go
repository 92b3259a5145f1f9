package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics хранит Prometheus-метрики сервиса
type Metrics struct {
	RequestCounter       *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	RequestsInFlight     prometheus.Gauge
	WebSocketClients     prometheus.Gauge
	NotificationsEmitted *prometheus.CounterVec
	StoreConnected       prometheus.Gauge
	SideEffectFailures   *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в переданном реестре.
// Отдельный реестр позволяет создавать Metrics в тестах многократно.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "pulse"
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		WebSocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ws",
				Name:      "clients",
				Help:      "Number of connected live channel subscribers",
			},
		),
		NotificationsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ws",
				Name:      "notifications_total",
				Help:      "Live notifications emitted by event name",
			},
			[]string{"event"},
		),
		StoreConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "connected",
				Help:      "1 when the durable store is reachable",
			},
		),
		SideEffectFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tasks",
				Name:      "failures_total",
				Help:      "Failed best-effort side effects by task name",
			},
			[]string{"task"},
		),
	}
}
