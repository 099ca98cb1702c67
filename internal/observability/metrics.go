package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the coordination core.
type Metrics struct {
	ChannelConnected  prometheus.Gauge
	ChannelReconnects prometheus.Counter
	TaskEvents        *prometheus.CounterVec
	TaskChunkBytes    prometheus.Counter
	Notifications     *prometheus.CounterVec
	SessionOps        *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ChannelConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_connected",
			Help:      "Whether the hub push channel is currently connected (0/1).",
		}),
		ChannelReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_reconnects_total",
			Help:      "Reconnect cycles entered after an established connection dropped.",
		}),
		TaskEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_events_total",
			Help:      "Task lifecycle events by type.",
		}, []string{"event"}),
		TaskChunkBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_chunk_bytes_total",
			Help:      "Streamed task output bytes accumulated.",
		}),
		Notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Wellness notifications by type and outcome.",
		}, []string{"type", "outcome"}),
		SessionOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_ops_total",
			Help:      "Wellness session operations by op and outcome.",
		}, []string{"op", "outcome"}),
	}
}

func (m *Metrics) ObserveTaskEvent(event string) {
	if m == nil {
		return
	}
	m.TaskEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveSessionOp(op, outcome string) {
	if m == nil {
		return
	}
	m.SessionOps.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveChunkBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TaskChunkBytes.Add(float64(n))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
