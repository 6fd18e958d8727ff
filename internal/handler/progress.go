package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/candle-clicker/internal/service"
)

// ProgressHandler serves live progress sync and publishing.
//
// Bodies are read as raw bytes, not decoded into a struct: the service
// stores exactly what the client sent, unknown fields included.
type ProgressHandler struct {
	sync   *service.SyncService
	logger *slog.Logger
}

// NewProgressHandler creates a ProgressHandler.
func NewProgressHandler(sync *service.SyncService, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{sync: sync, logger: logger}
}

// HandlePush overwrites the account's live progress.
//
// HTTP: POST /progress/{userId}
// REQUEST BODY: a progress record object
func (h *ProgressHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeBodyError(w, h.logger, err)
		return
	}

	if err := h.sync.PushProgress(r.Context(), chi.URLParam(r, "userId"), body); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "progress saved"})
}

// HandlePull returns the live progress, or {} when there is none.
//
// HTTP: GET /progress/{userId}
func (h *ProgressHandler) HandlePull(w http.ResponseWriter, r *http.Request) {
	progress, err := h.sync.PullProgress(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeRawJSON(w, http.StatusOK, progress)
}

// HandlePublish appends a snapshot to the account's public feed.
//
// HTTP: POST /publish/{userId}
// REQUEST BODY: a progress record object
func (h *ProgressHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeBodyError(w, h.logger, err)
		return
	}

	if err := h.sync.Publish(r.Context(), chi.URLParam(r, "userId"), body); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "progress published"})
}
