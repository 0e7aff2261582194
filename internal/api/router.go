package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/whisper-webui/backend/internal/api/handlers"
	"github.com/whisper-webui/backend/internal/api/middleware"
	"github.com/whisper-webui/backend/internal/config"
	"github.com/whisper-webui/backend/internal/storage"
	"github.com/whisper-webui/backend/internal/task"
)

// maxUploadBytes caps the transcribe route body. Chunked processing
// handles long recordings, so uploads well past the 25 MB direct limit
// are expected; 1 GiB is the sanity ceiling.
const maxUploadBytes = 1 << 30

func NewRouter(cfg *config.Config, log *logrus.Logger, pipeline handlers.Pipeline, store *storage.Store, registry *task.Registry) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(cors.Handler(middleware.CORSHandler(cfg.CORSOrigins)))

	transcribeHandler := handlers.NewTranscribeHandler(pipeline, store, registry, log, cfg.SyncMode)
	statusHandler := handlers.NewStatusHandler(registry)
	downloadHandler := handlers.NewDownloadHandler(store)
	healthHandler := handlers.NewHealthHandler(cfg.TranscriptionDir)

	r.With(middleware.MaxBodySize(maxUploadBytes)).Post("/transcribe", transcribeHandler.Transcribe)
	r.Get("/status/{taskID}", statusHandler.Get)
	r.Delete("/status/{taskID}", statusHandler.Cancel)
	r.Get("/download/{filename}", downloadHandler.Get)
	r.Get("/health", healthHandler.Get)

	return r
}
