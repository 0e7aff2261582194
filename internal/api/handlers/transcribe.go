package handlers

import (
	"context"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/whisper-webui/backend/internal/storage"
	"github.com/whisper-webui/backend/internal/subtitle"
	"github.com/whisper-webui/backend/internal/task"
	"github.com/whisper-webui/backend/internal/transcribe"
)

// multipartMemory is the in-memory buffer for parsing uploads; anything
// larger spills to disk before being staged.
const multipartMemory = 32 << 20

// Pipeline runs one transcription request end to end and returns the
// aggregated plain text.
type Pipeline interface {
	Run(ctx context.Context, req transcribe.Request) (string, error)
}

type TranscribeHandler struct {
	pipeline Pipeline
	store    *storage.Store
	registry *task.Registry
	log      *logrus.Logger
	syncMode bool
}

func NewTranscribeHandler(pipeline Pipeline, store *storage.Store, registry *task.Registry, log *logrus.Logger, syncMode bool) *TranscribeHandler {
	return &TranscribeHandler{
		pipeline: pipeline,
		store:    store,
		registry: registry,
		log:      log,
		syncMode: syncMode,
	}
}

// Transcribe accepts a multipart upload and either processes it inline
// (sync mode, 200) or spawns a background worker and returns a task to
// poll (202).
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio-file")
	if err != nil {
		jsonError(w, "audio-file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	if header.Size == 0 {
		jsonError(w, "audio-file is empty", http.StatusBadRequest)
		return
	}

	format := formValue(r, "output-format", subtitle.FormatText)
	if !subtitle.ValidFormat(format) {
		jsonError(w, "output-format must be text, srt or vtt", http.StatusBadRequest)
		return
	}

	kind := transcribe.Kind(formValue(r, "task", string(transcribe.KindTranscribe)))
	if kind != transcribe.KindTranscribe && kind != transcribe.KindTranslate {
		jsonError(w, "task must be transcribe or translate", http.StatusBadRequest)
		return
	}

	staged, err := h.store.StageUpload(file, header.Filename)
	if err != nil {
		jsonError(w, "failed to stage upload: "+err.Error(), http.StatusInternalServerError)
		return
	}

	req := transcribe.Request{
		SourcePath: staged,
		Kind:       kind,
		Language:   formValue(r, "language", "vi"),
		Prompt:     r.FormValue("prompt"),
	}

	if h.syncMode {
		text, name, err := h.process(r.Context(), req, format, header.Filename)
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		jsonResponse(w, map[string]string{
			"transcription": text,
			"download_url":  "/download/" + name,
		}, http.StatusOK)
		return
	}

	// The worker outlives this request, so it gets its own context; the
	// cancel func is held by the registry for DELETE /status/{taskID}.
	ctx, cancel := context.WithCancel(context.Background())
	t := h.registry.Create(cancel)

	go h.work(ctx, cancel, t.ID, req, format, header.Filename)

	jsonResponse(w, map[string]string{
		"message":    "transcription accepted",
		"task_id":    t.ID,
		"status_url": "/status/" + t.ID,
	}, http.StatusAccepted)
}

// work drives one background transcription and records its outcome. Any
// failure lands in the registry instead of crashing the process.
func (h *TranscribeHandler) work(ctx context.Context, cancel context.CancelFunc, id string, req transcribe.Request, format, originalName string) {
	defer cancel()

	text, name, err := h.process(ctx, req, format, originalName)
	if err != nil {
		if failErr := h.registry.Fail(id, err.Error()); failErr != nil {
			// Already cancelled; the error is only worth a log line.
			h.log.WithField("task_id", id).WithError(err).Debug("task finished after cancellation")
		}
		return
	}

	h.registry.Complete(id, task.Result{
		Transcription: text,
		DownloadURL:   "/download/" + name,
	})
}

// process runs the pipeline, renders the requested format and persists the
// output file. The staged upload is removed on every exit path.
func (h *TranscribeHandler) process(ctx context.Context, req transcribe.Request, format, originalName string) (string, string, error) {
	defer func() {
		if err := os.Remove(req.SourcePath); err != nil {
			h.log.WithError(err).Warn("failed to remove staged upload")
		}
	}()

	text, err := h.pipeline.Run(ctx, req)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"file": originalName,
			"kind": req.Kind,
		}).WithError(err).Error("transcription failed")
		return "", "", err
	}

	rendered := subtitle.Render(text, format)
	name, err := h.store.WriteResult(originalName, subtitle.Extension(format), rendered)
	if err != nil {
		return "", "", err
	}

	h.log.WithFields(logrus.Fields{
		"file":   originalName,
		"output": name,
	}).Info("transcription complete")
	return rendered, name, nil
}

func formValue(r *http.Request, key, fallback string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return fallback
}
