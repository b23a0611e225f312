// Package stub is a minimal collection endpoint used to exercise the
// publisher locally.
package stub

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzip"

	"github.com/bft-labs/metricship/internal/encoding"
	"github.com/bft-labs/metricship/pkg/log"
)

// PublishPath is the route that accepts updates.
const PublishPath = "/api/v1/publish"

// maxBodyBytes bounds a decoded request body.
const maxBodyBytes = 64 << 20

// Stats are the running totals of a Handler.
type Stats struct {
	Requests int64 `json:"requests"`
	Rejected int64 `json:"rejected"`
	Accepted int64 `json:"accepted"`
}

// Handler serves the stub endpoint.
type Handler struct {
	failEvery int64
	logger    log.Logger

	requests atomic.Int64
	rejected atomic.Int64
	accepted atomic.Int64
}

// NewHandler creates a Handler. When failEvery is positive every failEvery-th
// publish request is answered with 503.
func NewHandler(failEvery int, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Handler{failEvery: int64(failEvery), logger: logger}
}

// Routes returns the router for the stub.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post(PublishPath, h.HandlePublish)
	r.Get("/stats", h.HandleStats)
	r.Get("/health", h.HandleHealth)
	return r
}

// Stats returns the current totals.
func (h *Handler) Stats() Stats {
	return Stats{
		Requests: h.requests.Load(),
		Rejected: h.rejected.Load(),
		Accepted: h.accepted.Load(),
	}
}

func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	n := h.requests.Add(1)
	if h.failEvery > 0 && n%h.failEvery == 0 {
		h.rejected.Add(1)
		respondError(w, http.StatusServiceUnavailable, "injected failure")
		return
	}

	update, err := decodeUpdate(r)
	if err != nil {
		h.rejected.Add(1)
		h.logger.Warn("rejecting update", log.Err(err))
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.accepted.Add(int64(len(update.Metrics)))
	h.logger.Info("accepted update",
		log.String("request_id", r.Header.Get("X-Request-Id")),
		log.Int("metrics", len(update.Metrics)),
		log.Int("common_tags", len(update.Tags)),
	)
	respondJSON(w, http.StatusOK, map[string]int{"accepted": len(update.Metrics)})
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Stats())
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeUpdate(r *http.Request) (*encoding.Update, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("content type: %w", err)
	}

	var body io.Reader = r.Body
	switch r.Header.Get("Content-Encoding") {
	case "":
	case "gzip":
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		body = zr
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", r.Header.Get("Content-Encoding"))
	}

	b, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return encoding.Decode(mediaType, b)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
