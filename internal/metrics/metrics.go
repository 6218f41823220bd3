// Package metrics держит Prometheus-коллекторы сервиса на отдельном реестре.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chunk_lite"

// Result-лейблы для combines_total.
const (
	ResultOK      = "ok"
	ResultMissing = "missing_chunk"
	ResultError   = "error"
	ResultSkipped = "already_done"
)

type Metrics struct {
	registry *prometheus.Registry

	ChunksStored    prometheus.Counter
	Combines        *prometheus.CounterVec
	CombineDuration prometheus.Histogram
	SweptUploads    prometheus.Counter
}

// New регистрирует коллекторы на собственном реестре, чтобы тесты не делили глобальный.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ChunksStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_stored_total",
			Help:      "Chunks durably stored.",
		}),
		Combines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "combines_total",
			Help:      "Combine attempts by result.",
		}, []string{"result"}),
		CombineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "combine_duration_seconds",
			Help:      "Time spent concatenating chunks into the final file.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
		SweptUploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_uploads_total",
			Help:      "Stale incomplete uploads removed by retention.",
		}),
	}

	reg.MustRegister(
		m.ChunksStored,
		m.Combines,
		m.CombineDuration,
		m.SweptUploads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry нужен тестам для чтения значений.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
