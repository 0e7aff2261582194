package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/whisper-webui/backend/internal/audio"
)

// Kind is the operation requested from the speech service.
type Kind string

const (
	KindTranscribe Kind = "transcribe"
	KindTranslate  Kind = "translate"
)

// Request describes one user-initiated transcription or translation.
// It is constructed once per upload and not mutated afterwards.
type Request struct {
	SourcePath string
	Kind       Kind
	Language   string
	Prompt     string
}

// Segmenter prepares audio for chunked transcription. *audio.Processor is
// the ffmpeg-backed implementation; tests use stubs.
type Segmenter interface {
	Preprocess(ctx context.Context, src string) (string, error)
	Duration(ctx context.Context, path string) (time.Duration, error)
	Extract(ctx context.Context, src string, span audio.Span) (string, error)
}

const defaultDirectLimit = 25 * 1024 * 1024

// OrchestratorConfig wires an Orchestrator. Zero values fall back to the
// service defaults (25 MB direct limit, 10 min chunks, 2 s overlap,
// sequential chunk processing).
type OrchestratorConfig struct {
	Remote      Remote
	Segmenter   Segmenter
	Policy      Policy
	Log         *logrus.Logger
	ChunkLength time.Duration
	Overlap     time.Duration
	DirectLimit int64
	Workers     int
}

// Orchestrator runs the full pipeline for one request: small files go to
// the service in a single call, large ones are preprocessed, windowed and
// transcribed per chunk, then stitched back together in chunk order.
type Orchestrator struct {
	remote      Remote
	seg         Segmenter
	policy      Policy
	log         *logrus.Logger
	chunkLength time.Duration
	overlap     time.Duration
	directLimit int64
	workers     int
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	o := &Orchestrator{
		remote:      cfg.Remote,
		seg:         cfg.Segmenter,
		policy:      cfg.Policy,
		log:         cfg.Log,
		chunkLength: cfg.ChunkLength,
		overlap:     cfg.Overlap,
		directLimit: cfg.DirectLimit,
		workers:     cfg.Workers,
	}
	if o.policy.Attempts == 0 {
		o.policy = DefaultPolicy()
	}
	if o.log == nil {
		o.log = logrus.New()
	}
	if o.chunkLength <= 0 {
		o.chunkLength = audio.DefaultChunkLength
	}
	if o.overlap <= 0 {
		o.overlap = audio.DefaultOverlap
	}
	if o.directLimit <= 0 {
		o.directLimit = defaultDirectLimit
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}

// Run executes the request and returns the aggregated plain text. The same
// retry policy covers the direct and chunked paths.
func (o *Orchestrator) Run(ctx context.Context, req Request) (string, error) {
	info, err := os.Stat(req.SourcePath)
	if err != nil {
		return "", &audio.UnreadableAudioError{Path: req.SourcePath, Err: err}
	}

	if info.Size() <= o.directLimit {
		o.log.WithFields(logrus.Fields{
			"file": req.SourcePath,
			"size": info.Size(),
		}).Debug("transcribing in a single call")
		return o.call(ctx, req.SourcePath, req)
	}

	o.log.WithFields(logrus.Fields{
		"file":  req.SourcePath,
		"size":  info.Size(),
		"limit": o.directLimit,
	}).Info("file exceeds direct limit, splitting into chunks")
	return o.runChunked(ctx, req)
}

// call invokes the remote service once under the retry policy.
func (o *Orchestrator) call(ctx context.Context, path string, req Request) (string, error) {
	opts := CallOptions{Language: req.Language, Prompt: req.Prompt}
	var text string
	err := o.policy.Do(ctx, func() error {
		var callErr error
		if req.Kind == KindTranslate {
			text, callErr = o.remote.Translate(ctx, path, opts)
		} else {
			text, callErr = o.remote.Transcribe(ctx, path, opts)
		}
		return callErr
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (o *Orchestrator) runChunked(ctx context.Context, req Request) (string, error) {
	cleaned, err := o.seg.Preprocess(ctx, req.SourcePath)
	if err != nil {
		return "", err
	}
	defer os.Remove(cleaned)

	total, err := o.seg.Duration(ctx, cleaned)
	if err != nil {
		return "", err
	}

	spans := audio.Plan(total, o.chunkLength, o.overlap)
	if len(spans) == 0 {
		return "", &audio.UnreadableAudioError{Path: req.SourcePath, Err: fmt.Errorf("no audio duration detected")}
	}
	o.log.WithFields(logrus.Fields{
		"duration": total,
		"chunks":   len(spans),
	}).Info("planned chunked transcription")

	// Chunks may complete out of order when workers > 1; slots are indexed
	// by chunk so the final join is always in temporal order.
	parts := make([]string, len(spans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, span := range spans {
		i, span := i, span
		g.Go(func() error {
			// Cooperative cancellation, checked before each chunk starts.
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := o.transcribeChunk(gctx, cleaned, span, req)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			parts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	// Adjacent windows overlap, so a phrase spoken across a boundary can
	// appear in both fragments. The join keeps such duplicates.
	return strings.Join(parts, "\n"), nil
}

func (o *Orchestrator) transcribeChunk(ctx context.Context, src string, span audio.Span, req Request) (string, error) {
	chunkPath, err := o.seg.Extract(ctx, src, span)
	if err != nil {
		return "", err
	}
	defer os.Remove(chunkPath)

	return o.call(ctx, chunkPath, req)
}
