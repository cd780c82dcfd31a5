package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "course_rag"

// Query outcomes.
const (
	OutcomeAnswered        = "answered"
	OutcomeGenerationError = "generation_failed"
	OutcomeStoreError      = "store_unavailable"
	OutcomeInvalid         = "invalid"
	OutcomeError           = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	Queries         *prometheus.CounterVec
	ToolInvocations *prometheus.CounterVec
	ModelLatency    *prometheus.HistogramVec
	IngestedCourses *prometheus.CounterVec
	IngestedChunks  prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Answered queries by outcome.",
		}, []string{"outcome"}),
		ToolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Tool invocations requested by the model.",
		}, []string{"tool"}),
		ModelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_seconds",
			Help:      "Latency of language model calls.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"phase"}),
		IngestedCourses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_courses_total",
			Help:      "Course documents processed by result.",
		}, []string{"result"}),
		IngestedChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_chunks_total",
			Help:      "Chunks written to the content collection.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Queries,
		m.ToolInvocations,
		m.ModelLatency,
		m.IngestedCourses,
		m.IngestedChunks,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveModelCall records the duration since start for one call phase.
func (m *Metrics) ObserveModelCall(phase string, start time.Time) {
	m.ModelLatency.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}
