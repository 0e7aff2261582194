package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/whisper-webui/backend/internal/task"
)

type StatusHandler struct {
	registry *task.Registry
}

func NewStatusHandler(registry *task.Registry) *StatusHandler {
	return &StatusHandler{registry: registry}
}

// Get reports the current status of a task.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")

	t, err := h.registry.Get(id)
	if err != nil {
		jsonError(w, "task not found", http.StatusNotFound)
		return
	}

	switch t.Status {
	case task.StatusCompleted:
		jsonResponse(w, map[string]string{
			"status":        string(t.Status),
			"transcription": t.Result.Transcription,
			"download_url":  t.Result.DownloadURL,
		}, http.StatusOK)
	case task.StatusFailed:
		jsonResponse(w, map[string]string{
			"status": string(t.Status),
			"error":  t.Error,
		}, http.StatusOK)
	default:
		jsonResponse(w, map[string]string{"status": string(t.Status)}, http.StatusOK)
	}
}

// Cancel stops a processing task. The worker observes the cancellation
// before starting its next chunk.
func (h *StatusHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")

	err := h.registry.Cancel(id)
	switch {
	case errors.Is(err, task.ErrNotFound):
		jsonError(w, "task not found", http.StatusNotFound)
	case errors.Is(err, task.ErrTerminal):
		jsonError(w, "task already finished", http.StatusConflict)
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	default:
		jsonResponse(w, map[string]string{"status": string(task.StatusCancelled)}, http.StatusOK)
	}
}
