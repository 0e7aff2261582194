package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("file not found")

// Store owns the two directories the service writes to: a persistent
// output directory for finished transcriptions and a staging directory
// for uploads and intermediate audio. Every staged file has exactly one
// owner (the request or worker that created it) who removes it.
type Store struct {
	outputDir  string
	stagingDir string
}

func NewStore(outputDir, stagingDir string) (*Store, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Store{outputDir: outputDir, stagingDir: stagingDir}, nil
}

// OutputDir returns the persistent transcription directory.
func (s *Store) OutputDir() string {
	return s.outputDir
}

// StagingDir returns the upload/intermediate directory.
func (s *Store) StagingDir() string {
	return s.stagingDir
}

// StageUpload copies an uploaded stream into the staging directory under
// a unique name, keeping the original extension so ffmpeg can sniff the
// container. The caller removes the returned file when done.
func (s *Store) StageUpload(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	f, err := os.CreateTemp(s.stagingDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return f.Name(), nil
}

// WriteResult persists a finished transcription as
// {originalBaseName}_{uniqueID}.{ext} and returns the file name.
func (s *Store) WriteResult(originalName, ext, content string) (string, error) {
	base := sanitizeBase(originalName)
	name := fmt.Sprintf("%s_%s.%s", base, uuid.New().String()[:8], ext)
	if err := os.WriteFile(filepath.Join(s.outputDir, name), []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	return name, nil
}

// Resolve maps a download file name to its absolute path inside the
// output directory, rejecting traversal outside it.
func (s *Store) Resolve(name string) (string, error) {
	full := filepath.Join(s.outputDir, name)

	absDir, err := filepath.Abs(s.outputDir)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if absFull == absDir || !strings.HasPrefix(absFull, absDir+string(filepath.Separator)) {
		return "", ErrNotFound
	}

	info, err := os.Stat(absFull)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return absFull, nil
}

// sanitizeBase reduces an uploaded file name to a safe output base name.
func sanitizeBase(originalName string) string {
	base := filepath.Base(originalName)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "audio"
	}
	return b.String()
}
