package handlers

import (
	"net/http"
	"os"
)

type HealthHandler struct {
	transcriptionDir string
}

func NewHealthHandler(transcriptionDir string) *HealthHandler {
	return &HealthHandler{transcriptionDir: transcriptionDir}
}

func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := os.Stat(h.transcriptionDir)
	jsonResponse(w, map[string]interface{}{
		"status":            "healthy",
		"transcription_dir": h.transcriptionDir,
		"dir_exists":        err == nil && info.IsDir(),
	}, http.StatusOK)
}
