// Package api serves the read-only status endpoints of a running scrape.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/nykaa-review-scraper/internal/checkpoint"
	"github.com/maltedev/nykaa-review-scraper/internal/jobs"
)

type ProgressSource interface {
	Stats() jobs.Stats
}

type CheckpointSource interface {
	List() ([]checkpoint.Summary, error)
	Load(keyword string) (*checkpoint.State, error)
}

type Handlers struct {
	progress    ProgressSource
	checkpoints CheckpointSource
	logger      *slog.Logger
}

// NewHandlers builds the handlers. checkpoints may be nil when checkpointing
// is disabled.
func NewHandlers(progress ProgressSource, checkpoints CheckpointSource, logger *slog.Logger) *Handlers {
	return &Handlers{
		progress:    progress,
		checkpoints: checkpoints,
		logger:      logger.With("component", "status_api"),
	}
}

// Health reports liveness and whether a run is in flight.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.progress.Stats()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"running": stats.Running,
		"run_id":  stats.RunID,
	})
}

// GetProgress returns the live per-keyword progress and finished keywords.
func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.progress.Stats())
}

// ListCheckpoints returns one summary per stored checkpoint.
func (h *Handlers) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	if h.checkpoints == nil {
		h.respondError(w, http.StatusNotFound, "checkpoints are disabled")
		return
	}

	list, err := h.checkpoints.List()
	if err != nil {
		h.logger.Error("failed to list checkpoints", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list checkpoints")
		return
	}
	if list == nil {
		list = make([]checkpoint.Summary, 0)
	}

	h.respondJSON(w, http.StatusOK, list)
}

// CheckpointDetail is the metadata of one checkpoint without its records.
type CheckpointDetail struct {
	Keyword  string              `json:"keyword"`
	SavedAt  time.Time           `json:"saved_at"`
	Products int                 `json:"products"`
	Reviews  int                 `json:"reviews"`
	Metadata checkpoint.Metadata `json:"metadata"`
}

// GetCheckpoint handles a single keyword's checkpoint metadata
func (h *Handlers) GetCheckpoint(w http.ResponseWriter, r *http.Request) {
	if h.checkpoints == nil {
		h.respondError(w, http.StatusNotFound, "checkpoints are disabled")
		return
	}

	keyword := chi.URLParam(r, "keyword")
	if keyword == "" {
		h.respondError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	st, err := h.checkpoints.Load(keyword)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "checkpoint not found")
			return
		}
		h.logger.Error("failed to load checkpoint", "keyword", keyword, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load checkpoint")
		return
	}

	reviews := 0
	for i := range st.AccumulatedRecords {
		reviews += st.AccumulatedRecords[i].ReviewsScraped()
	}

	h.respondJSON(w, http.StatusOK, CheckpointDetail{
		Keyword:  st.Keyword,
		SavedAt:  st.SavedAt,
		Products: len(st.AccumulatedRecords),
		Reviews:  reviews,
		Metadata: st.Metadata,
	})
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
