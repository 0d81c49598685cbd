package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pithecene-io/assay/feature"
	"github.com/pithecene-io/assay/infer"
	"github.com/pithecene-io/assay/log"
	"github.com/pithecene-io/assay/metrics"
)

// Infer is the Stage C HTTP surface: synchronous risk queries plus a debug
// read-through of the feature store.
type Infer struct {
	predictor *infer.Predictor
	store     *feature.Store
	metrics   *metrics.Infer
	logger    *log.Logger
}

// NewInfer wires the inference handlers.
func NewInfer(predictor *infer.Predictor, store *feature.Store, m *metrics.Infer, logger *log.Logger) *Infer {
	predictor.Instrument(m)
	return &Infer{predictor: predictor, store: store, metrics: m, logger: logger}
}

// Routes builds the inference router.
func (s *Infer) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/predict", s.handlePredict)
	r.Get("/features/{user_id}", s.handleFeatures)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	return r
}

type predictRequest struct {
	UserID string `json:"user_id"`
}

func (s *Infer) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		s.metrics.PredictLatency.Observe(time.Since(start).Seconds())
	}()

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "malformed request: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "user_id is required")
		return
	}

	pred, err := s.predictor.Predict(r.Context(), req.UserID)
	if err != nil {
		s.metrics.RequestsTotal.WithLabelValues("error", "unknown").Inc()
		if s.logger != nil {
			s.logger.Error("predict failed", map[string]any{
				"user_id": req.UserID,
				"error":   err.Error(),
			})
		}
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.RequestsTotal.WithLabelValues("success", pred.Decision).Inc()
	writeJSON(w, http.StatusOK, pred)
}

// handleFeatures returns the raw snapshot for a user, with numeric-looking
// values converted so operators see numbers rather than strings.
func (s *Infer) handleFeatures(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	fields, err := s.store.ReadSnapshot(r.Context(), userID)
	if errors.Is(err, feature.ErrNoSnapshot) {
		writeDetail(w, http.StatusNotFound, "no features found for user "+userID)
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	features := make(map[string]any, len(fields))
	for k, v := range fields {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			features[k] = f
		} else {
			features[k] = v
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"features": features,
	})
}

func (s *Infer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
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
		"model":  "loaded",
	})
}
