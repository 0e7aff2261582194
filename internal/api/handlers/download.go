package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/whisper-webui/backend/internal/storage"
)

type DownloadHandler struct {
	store *storage.Store
}

func NewDownloadHandler(store *storage.Store) *DownloadHandler {
	return &DownloadHandler{store: store}
}

// Get streams a finished transcription file.
func (h *DownloadHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	path, err := h.store.Resolve(name)
	if err != nil {
		jsonError(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	http.ServeFile(w, r, path)
}
