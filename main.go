package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/whisper-webui/backend/internal/api"
	"github.com/whisper-webui/backend/internal/audio"
	"github.com/whisper-webui/backend/internal/config"
	"github.com/whisper-webui/backend/internal/logger"
	"github.com/whisper-webui/backend/internal/storage"
	"github.com/whisper-webui/backend/internal/task"
	"github.com/whisper-webui/backend/internal/transcribe"
)

func main() {
	cfg := config.Load()
	log := logger.New()

	store, err := storage.NewStore(cfg.TranscriptionDir, cfg.StagingDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	if cfg.APIKey == "" {
		log.Warn("AZURE_OPENAI_API_KEY not set, remote transcription calls will fail")
	}

	registry := task.NewRegistry()
	processor := audio.NewProcessor(cfg.StagingDir)
	client := transcribe.NewClient(transcribe.ClientConfig{
		APIKey:     cfg.APIKey,
		Endpoint:   cfg.Endpoint,
		APIVersion: cfg.APIVersion,
		Model:      cfg.Model,
		Deployment: cfg.Deployment,
	})
	orchestrator := transcribe.NewOrchestrator(transcribe.OrchestratorConfig{
		Remote:      client,
		Segmenter:   processor,
		Log:         log,
		ChunkLength: cfg.ChunkLength,
		Overlap:     cfg.ChunkOverlap,
		DirectLimit: cfg.DirectLimit,
		Workers:     cfg.ChunkWorkers,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Backstop for staged files orphaned by a crash.
	reaper := storage.NewReaper(cfg.StagingDir, cfg.StagingTTL, log)
	go reaper.Run(ctx)

	router := api.NewRouter(cfg, log, orchestrator, store, registry)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infof("Starting server on %s", srv.Addr)
	log.Infof("Transcription dir: %s (sync mode: %v)", cfg.TranscriptionDir, cfg.SyncMode)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
