package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveCalls       prometheus.Gauge
	CallEvents        *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec
	UpstreamEvents    *prometheus.CounterVec
	ResolverErrors    *prometheus.CounterVec
	ToolCalls         *prometheus.CounterVec
	FirstAudioLatency prometheus.Histogram

	registry    *prometheus.Registry
	stageWindow *callStageWindow
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry:    reg,
		stageWindow: newCallStageWindow(512),
		ActiveCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of active voice calls.",
		}),
		CallEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call lifecycle events by type.",
		}, []string{"event"}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Client WebSocket messages by direction and kind.",
		}, []string{"direction", "kind"}),
		UpstreamEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_events_total",
			Help:      "Realtime API server events by type.",
		}, []string{"type"}),
		ResolverErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_errors_total",
			Help:      "Customer context resolver errors by stage.",
		}, []string{"stage"}),
		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Intercepted tool calls by name.",
		}, []string{"name"}),
		FirstAudioLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_audio_latency_ms",
			Help:      "Latency to first assistant audio chunk in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000},
		}),
	}
}

func (m *Metrics) ObserveFirstAudioLatency(d time.Duration) {
	m.FirstAudioLatency.Observe(float64(d.Milliseconds()))
	m.stageWindow.Observe("start_to_first_audio", float64(d.Milliseconds()))
}

// ObserveCallStage records one latency sample for a pipeline stage into the
// rolling in-process window exposed by the perf endpoint.
func (m *Metrics) ObserveCallStage(stage string, d time.Duration) {
	m.stageWindow.Observe(stage, float64(d.Microseconds())/1000.0)
}

func (m *Metrics) ObserveCallIndicator(name string) {
	m.stageWindow.ObserveIndicator(name)
}

func (m *Metrics) SnapshotCallStages() CallStageSnapshot {
	return m.stageWindow.Snapshot()
}

func (m *Metrics) ResetCallStages() {
	m.stageWindow.Reset()
}

// Handler serves the registry this Metrics instance registered into.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
