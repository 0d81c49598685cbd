package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pithecene-io/assay/log"
	"github.com/pithecene-io/assay/metrics"
	"github.com/pithecene-io/assay/sink"
	"github.com/pithecene-io/assay/stream"
	"github.com/pithecene-io/assay/types"
)

// Ingest is the Stage A HTTP surface: accept events, buffer them for the
// columnar sink, and republish onto the event log.
type Ingest struct {
	writer    *sink.Writer
	publisher *stream.Publisher
	metrics   *metrics.Ingest
	logger    *log.Logger
}

// NewIngest wires the ingest handlers.
func NewIngest(writer *sink.Writer, publisher *stream.Publisher, m *metrics.Ingest, logger *log.Logger) *Ingest {
	return &Ingest{writer: writer, publisher: publisher, metrics: m, logger: logger}
}

// Routes builds the ingest router.
func (s *Ingest) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/events", s.handleEvent)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	return r
}

// handleEvent validates the event, buffers it, and appends it to the log.
// Both writes must succeed before the 200; neither is rolled back when the
// other fails.
func (s *Ingest) handleEvent(w http.ResponseWriter, r *http.Request) {
	var event types.TransactionEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "malformed event payload: "+err.Error())
		return
	}
	if err := event.Validate(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ctx := r.Context()
	if err := s.writer.Enqueue(ctx, &event); err != nil {
		s.fail(w, "enqueue failed", err)
		return
	}
	if _, err := s.publisher.Publish(ctx, &event); err != nil {
		s.fail(w, "stream publish failed", err)
		return
	}

	s.metrics.EventsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"event_id": event.EventID,
	})
}

func (s *Ingest) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.publisher.Ping(r.Context()); err != nil {
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

func (s *Ingest) fail(w http.ResponseWriter, msg string, err error) {
	s.metrics.EventsTotal.WithLabelValues("error").Inc()
	if s.logger != nil {
		s.logger.Error(msg, map[string]any{"error": err.Error()})
	}
	writeDetail(w, http.StatusInternalServerError, err.Error())
}
