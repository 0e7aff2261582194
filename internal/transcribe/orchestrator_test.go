package transcribe_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/whisper-webui/backend/internal/audio"
	"github.com/whisper-webui/backend/internal/transcribe"
)

// stubRemote answers with the chunk file's base name, optionally failing
// or sleeping first so completion order shuffles under parallelism.
type stubRemote struct {
	mu         sync.Mutex
	calls      int
	paths      []string
	jitter     bool
	failOn     string // base name that triggers failErr
	failErr    error
	translated int
}

func (s *stubRemote) record(path string) {
	s.mu.Lock()
	s.calls++
	s.paths = append(s.paths, path)
	s.mu.Unlock()
}

func (s *stubRemote) Transcribe(_ context.Context, path string, _ transcribe.CallOptions) (string, error) {
	s.record(path)
	if s.jitter {
		time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
	}
	base := filepath.Base(path)
	if s.failOn != "" && base == s.failOn {
		return "", s.failErr
	}
	return base, nil
}

func (s *stubRemote) Translate(ctx context.Context, path string, opts transcribe.CallOptions) (string, error) {
	s.mu.Lock()
	s.translated++
	s.mu.Unlock()
	return s.Transcribe(ctx, path, opts)
}

// stubSegmenter produces chunk files named after their window start so
// the aggregate output reveals ordering.
type stubSegmenter struct {
	mu        sync.Mutex
	dir       string
	duration  time.Duration
	preCalls  int
	extracted []audio.Span
}

func (s *stubSegmenter) Preprocess(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	s.preCalls++
	s.mu.Unlock()
	f, err := os.CreateTemp(s.dir, "preprocessed-*.wav")
	if err != nil {
		return "", err
	}
	f.Close()
	return f.Name(), nil
}

func (s *stubSegmenter) Duration(_ context.Context, _ string) (time.Duration, error) {
	return s.duration, nil
}

func (s *stubSegmenter) Extract(_ context.Context, _ string, span audio.Span) (string, error) {
	s.mu.Lock()
	s.extracted = append(s.extracted, span)
	s.mu.Unlock()
	path := filepath.Join(s.dir, fmt.Sprintf("chunk-%07dms.wav", span.Start.Milliseconds()))
	if err := os.WriteFile(path, []byte("chunk"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func instantPolicy() transcribe.Policy {
	p := transcribe.DefaultPolicy()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func sourceFile(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.mp3")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	// Sparse file; only the size matters for threshold dispatch.
	if err := f.Truncate(size); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return path
}

func newOrchestrator(remote transcribe.Remote, seg transcribe.Segmenter, workers int) *transcribe.Orchestrator {
	return transcribe.NewOrchestrator(transcribe.OrchestratorConfig{
		Remote:    remote,
		Segmenter: seg,
		Policy:    instantPolicy(),
		Workers:   workers,
	})
}

func TestRunDirectBelowThreshold(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{}
	seg := &stubSegmenter{dir: t.TempDir()}
	o := newOrchestrator(remote, seg, 1)

	src := sourceFile(t, 10<<20)
	text, err := o.Run(context.Background(), transcribe.Request{SourcePath: src, Kind: transcribe.KindTranscribe})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if remote.calls != 1 {
		t.Errorf("remote called %d times for a 10MB file, want exactly 1", remote.calls)
	}
	if remote.paths[0] != src {
		t.Errorf("remote received %s, want the source file %s", remote.paths[0], src)
	}
	if seg.preCalls != 0 || len(seg.extracted) != 0 {
		t.Errorf("segmenter touched on the direct path: preprocess=%d extract=%d", seg.preCalls, len(seg.extracted))
	}
	if text != filepath.Base(src) {
		t.Errorf("text = %q, want %q", text, filepath.Base(src))
	}
}

func TestRunChunkedAboveThreshold(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{}
	seg := &stubSegmenter{dir: t.TempDir(), duration: 25 * time.Minute}
	o := newOrchestrator(remote, seg, 1)

	src := sourceFile(t, 30<<20)
	_, err := o.Run(context.Background(), transcribe.Request{SourcePath: src})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if remote.calls <= 1 {
		t.Errorf("remote called %d times for a 30MB file, want more than 1", remote.calls)
	}
	if seg.preCalls != 1 {
		t.Errorf("preprocess called %d times, want 1", seg.preCalls)
	}
	if len(seg.extracted) != 3 {
		t.Errorf("extracted %d chunks of a 25min file, want 3", len(seg.extracted))
	}
}

func TestRunChunkedOrderingUnderParallelism(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{jitter: true}
	seg := &stubSegmenter{dir: t.TempDir(), duration: 55 * time.Minute}
	o := newOrchestrator(remote, seg, 4)

	text, err := o.Run(context.Background(), transcribe.Request{SourcePath: sourceFile(t, 30 << 20)})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	spans := audio.Plan(55*time.Minute, audio.DefaultChunkLength, audio.DefaultOverlap)
	want := make([]string, len(spans))
	for i, span := range spans {
		want[i] = fmt.Sprintf("chunk-%07dms.wav", span.Start.Milliseconds())
	}
	if got := strings.Split(text, "\n"); !equalStrings(got, want) {
		t.Errorf("aggregated fragments out of order:\n got %v\nwant %v", got, want)
	}
}

func TestRunChunkFailurePropagates(t *testing.T) {
	t.Parallel()

	seg := &stubSegmenter{dir: t.TempDir(), duration: 25 * time.Minute}
	spans := audio.Plan(25*time.Minute, audio.DefaultChunkLength, audio.DefaultOverlap)
	cause := &transcribe.RemoteError{StatusCode: 400, Transient: false, Err: errors.New("audio too short")}
	remote := &stubRemote{
		failOn:  fmt.Sprintf("chunk-%07dms.wav", spans[1].Start.Milliseconds()),
		failErr: cause,
	}
	o := newOrchestrator(remote, seg, 1)

	_, err := o.Run(context.Background(), transcribe.Request{SourcePath: sourceFile(t, 30 << 20)})
	if err == nil {
		t.Fatal("Run succeeded, want chunk failure to propagate")
	}

	var re *transcribe.RemoteError
	if !errors.As(err, &re) || re != cause {
		t.Errorf("Run error = %v, want it to wrap the originating cause %v", err, cause)
	}
}

func TestRunChunkedCleansUpTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	remote := &stubRemote{}
	seg := &stubSegmenter{dir: dir, duration: 25 * time.Minute}
	o := newOrchestrator(remote, seg, 1)

	_, err := o.Run(context.Background(), transcribe.Request{SourcePath: sourceFile(t, 30 << 20)})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("staging files left behind: %v", names)
	}
}

func TestRunRetriesDirectPath(t *testing.T) {
	t.Parallel()

	// The direct path gets the same retry policy as chunks.
	var calls int
	remote := &flakyRemote{failures: 2}
	o := transcribe.NewOrchestrator(transcribe.OrchestratorConfig{
		Remote:    remote,
		Segmenter: &stubSegmenter{dir: t.TempDir()},
		Policy:    instantPolicy(),
	})

	text, err := o.Run(context.Background(), transcribe.Request{SourcePath: sourceFile(t, 1 << 20)})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if text != "recovered" {
		t.Errorf("text = %q, want %q", text, "recovered")
	}
	if calls = remote.calls; calls != 3 {
		t.Errorf("remote called %d times, want 3 (2 transient failures + success)", calls)
	}
}

func TestRunTranslateUsesTranslationCall(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{}
	o := newOrchestrator(remote, &stubSegmenter{dir: t.TempDir()}, 1)

	_, err := o.Run(context.Background(), transcribe.Request{
		SourcePath: sourceFile(t, 1 << 20),
		Kind:       transcribe.KindTranslate,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if remote.translated != 1 {
		t.Errorf("Translate called %d times, want 1", remote.translated)
	}
}

func TestRunMissingSource(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(&stubRemote{}, &stubSegmenter{dir: t.TempDir()}, 1)

	_, err := o.Run(context.Background(), transcribe.Request{SourcePath: "/nonexistent/audio.mp3"})

	var unreadable *audio.UnreadableAudioError
	if !errors.As(err, &unreadable) {
		t.Errorf("Run error = %v, want UnreadableAudioError", err)
	}
}

func TestRunCancelledBetweenChunks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	seg := &stubSegmenter{dir: t.TempDir(), duration: 55 * time.Minute}
	remote := &cancellingRemote{cancel: cancel}
	o := newOrchestrator(remote, seg, 1)

	_, err := o.Run(ctx, transcribe.Request{SourcePath: sourceFile(t, 30 << 20)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if remote.calls != 1 {
		t.Errorf("remote called %d times after cancellation, want 1", remote.calls)
	}
}

// flakyRemote fails transiently a fixed number of times, then succeeds.
type flakyRemote struct {
	mu       sync.Mutex
	calls    int
	failures int
}

func (f *flakyRemote) Transcribe(context.Context, string, transcribe.CallOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return "", &transcribe.RemoteError{StatusCode: 503, Transient: true, Err: errors.New("unavailable")}
	}
	return "recovered", nil
}

func (f *flakyRemote) Translate(ctx context.Context, path string, opts transcribe.CallOptions) (string, error) {
	return f.Transcribe(ctx, path, opts)
}

// cancellingRemote cancels the request context during its first call.
type cancellingRemote struct {
	mu     sync.Mutex
	calls  int
	cancel context.CancelFunc
}

func (c *cancellingRemote) Transcribe(context.Context, string, transcribe.CallOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.cancel()
	return "partial", nil
}

func (c *cancellingRemote) Translate(ctx context.Context, path string, opts transcribe.CallOptions) (string, error) {
	return c.Transcribe(ctx, path, opts)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
