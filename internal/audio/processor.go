package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Runner executes an external command. The OS implementation shells out;
// tests substitute a fake so processing logic runs without ffmpeg.
type Runner interface {
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Processor normalizes audio and materializes time windows of it using
// ffmpeg. Every file it produces is owned by the caller, who removes it
// once the downstream transcription call finishes.
type Processor struct {
	stagingDir string
	run        Runner
}

type ProcessorOption func(*Processor)

// WithRunner replaces the command runner, for tests.
func WithRunner(r Runner) ProcessorOption {
	return func(p *Processor) {
		p.run = r
	}
}

func NewProcessor(stagingDir string, opts ...ProcessorOption) *Processor {
	p := &Processor{
		stagingDir: stagingDir,
		run:        execRunner{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Preprocess downmixes src to mono 16 kHz, normalizes loudness and
// band-passes it to the speech range (100 Hz high-pass, 8 kHz low-pass).
// The source is stat'd and opened before ffmpeg runs so a missing or
// unreadable file fails with a clear cause instead of a decode error.
func (p *Processor) Preprocess(ctx context.Context, src string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", &UnreadableAudioError{Path: src, Err: err}
	}
	f.Close()

	tmp, err := os.CreateTemp(p.stagingDir, "preprocessed-*.wav")
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	tmp.Close()

	output, err := p.run.CombinedOutput(ctx, "ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-vn",
		"-ac", "1", // mono
		"-ar", "16000", // 16kHz
		"-af", "loudnorm,highpass=f=100,lowpass=f=8000",
		"-y",
		tmp.Name(),
	)
	if err != nil {
		os.Remove(tmp.Name())
		return "", &UnreadableAudioError{Path: src, Err: fmt.Errorf("ffmpeg: %s: %w", string(output), err)}
	}

	return tmp.Name(), nil
}

// Extract materializes one window of src as a 16 kHz mono WAV chunk.
func (p *Processor) Extract(ctx context.Context, src string, span Span) (string, error) {
	tmp, err := os.CreateTemp(p.stagingDir, "chunk-*.wav")
	if err != nil {
		return "", fmt.Errorf("create chunk file: %w", err)
	}
	tmp.Close()

	output, err := p.run.CombinedOutput(ctx, "ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-ss", formatTime(span.Start),
		"-to", formatTime(span.End),
		"-c:a", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		tmp.Name(),
	)
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("extract chunk %s-%s: %s: %w", formatTime(span.Start), formatTime(span.End), string(output), err)
	}

	return tmp.Name(), nil
}

// formatTime renders a duration for ffmpeg -ss/-to arguments.
func formatTime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := d.Seconds() - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}
