// Package metrics declares the Prometheus metrics each pipeline service
// exposes. Metric names and label sets are a cross-stage contract; dashboards
// and alerts key on them, so they must not be renamed.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Ingest holds the ingest service's metrics.
type Ingest struct {
	Registry *prometheus.Registry

	// EventsTotal counts ingested events by terminal status (success/error).
	EventsTotal *prometheus.CounterVec
	// FlushesTotal counts columnar buffer flushes.
	FlushesTotal prometheus.Counter
	// BufferSize tracks the current event buffer depth.
	BufferSize prometheus.Gauge
	// FlushLatency observes time spent writing a batch to blob storage.
	FlushLatency prometheus.Histogram
}

// NewIngest creates and registers the ingest metric set on a fresh registry.
func NewIngest() *Ingest {
	reg := prometheus.NewRegistry()

	m := &Ingest{
		Registry: reg,
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_events_total",
			Help: "Total number of events ingested",
		}, []string{"status"}),
		FlushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_flushes_total",
			Help: "Total number of buffer flushes",
		}),
		BufferSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_buffer_size",
			Help: "Current size of event buffer",
		}),
		FlushLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_flush_latency_seconds",
			Help:    "Time taken to flush buffer to Parquet",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		}),
	}
	reg.MustRegister(m.EventsTotal, m.FlushesTotal, m.BufferSize, m.FlushLatency)
	return m
}

// Featurizer holds the featurizer service's metrics.
type Featurizer struct {
	Registry *prometheus.Registry

	// UpdatesTotal counts feature snapshots written to the store.
	UpdatesTotal prometheus.Counter
	// FreshnessLag observes wall-clock minus event time at publish, clamped >= 0.
	FreshnessLag prometheus.Histogram
	// WriteLatency observes feature-store write round trips.
	WriteLatency prometheus.Histogram
}

// NewFeaturizer creates and registers the featurizer metric set.
func NewFeaturizer() *Featurizer {
	reg := prometheus.NewRegistry()

	m := &Featurizer{
		Registry: reg,
		UpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feature_updates_total",
			Help: "Total number of feature updates written to Redis",
		}),
		FreshnessLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feature_freshness_lag_seconds",
			Help:    "Time lag between event timestamp and feature update (seconds)",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		}),
		WriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "redis_write_latency_seconds",
			Help:    "Time taken to write features to Redis (seconds)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
	}
	reg.MustRegister(m.UpdatesTotal, m.FreshnessLag, m.WriteLatency)
	return m
}

// Infer holds the inference service's metrics.
type Infer struct {
	Registry *prometheus.Registry

	// RequestsTotal counts predictions by status and decision.
	RequestsTotal *prometheus.CounterVec
	// PredictLatency observes end-to-end prediction handling time.
	PredictLatency prometheus.Histogram
	// FetchLatency observes feature-store read round trips.
	FetchLatency prometheus.Histogram
}

// NewInfer creates and registers the inference metric set.
func NewInfer() *Infer {
	reg := prometheus.NewRegistry()

	m := &Infer{
		Registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_requests_total",
			Help: "Total number of prediction requests",
		}, []string{"status", "decision"}),
		PredictLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "predict_latency_seconds",
			Help:    "Time taken to process prediction request (seconds)",
			Buckets: []float64{0.01, 0.05, 0.1, 0.15, 0.2, 0.5, 1.0},
		}),
		FetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "redis_fetch_latency_seconds",
			Help:    "Time taken to fetch features from Redis (seconds)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
	reg.MustRegister(m.RequestsTotal, m.PredictLatency, m.FetchLatency)
	return m
}
