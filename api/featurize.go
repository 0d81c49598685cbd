package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/stream"
)

// Featurize is the Stage B sidecar surface. The featurizer itself is a
// stream consumer, not a request handler; HTTP exists only for health and
// metrics exposition.
type Featurize struct {
	consumer *stream.Consumer
	metrics  *metrics.Featurizer
}

// NewFeaturize wires the featurizer's observability handlers.
func NewFeaturize(consumer *stream.Consumer, m *metrics.Featurizer) *Featurize {
	return &Featurize{consumer: consumer, metrics: m}
}

// Routes builds the featurizer router.
func (s *Featurize) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	return r
}

func (s *Featurize) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.consumer.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "unhealthy",
			"redis":  "disconnected",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"redis":  "connected",
	})
}
