package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port int

	// Remote whisper service. An empty Endpoint targets api.openai.com
	// directly; otherwise the Azure OpenAI endpoint is used and Model is
	// mapped to Deployment.
	Endpoint   string
	APIKey     string
	Model      string
	Deployment string
	APIVersion string

	TranscriptionDir string
	StagingDir       string

	// SyncMode makes POST /transcribe block until the result is ready
	// instead of returning 202 with a task to poll.
	SyncMode bool

	CORSOrigins []string

	ChunkLength  time.Duration
	ChunkOverlap time.Duration
	DirectLimit  int64 // max bytes sent to the service in one call
	ChunkWorkers int

	StagingTTL time.Duration
}

func Load() *Config {
	// Optional .env for local development; real deployments set env vars.
	godotenv.Load()

	port, _ := strconv.Atoi(getEnv("PORT", "8080"))

	// Hosted deployments (Azure App Service sets WEBSITE_HOSTNAME) only
	// get a writable /home; local runs keep output next to the binary.
	defaultDir := "./transcriptions"
	if os.Getenv("WEBSITE_HOSTNAME") != "" {
		defaultDir = "/home/transcriptions"
	}
	transcriptionDir := getEnv("TRANSCRIPTION_DIR", defaultDir)

	// CORS origins: comma-separated list or "*" (default)
	corsOrigins := []string{"*"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		corsOrigins = make([]string, 0, len(origins))
		for _, o := range origins {
			o = strings.TrimSpace(o)
			if o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	chunkMinutes, _ := strconv.Atoi(getEnv("CHUNK_MINUTES", "10"))
	overlapSeconds, _ := strconv.Atoi(getEnv("CHUNK_OVERLAP_SECONDS", "2"))
	directLimitMB, _ := strconv.Atoi(getEnv("DIRECT_LIMIT_MB", "25"))
	workers, _ := strconv.Atoi(getEnv("CHUNK_WORKERS", "1"))
	if workers < 1 {
		workers = 1
	}
	ttlMinutes, _ := strconv.Atoi(getEnv("STAGING_TTL_MINUTES", "60"))

	return &Config{
		Port:             port,
		Endpoint:         os.Getenv("AZURE_OPENAI_ENDPOINT"),
		APIKey:           os.Getenv("AZURE_OPENAI_API_KEY"),
		Model:            getEnv("WHISPER_MODEL", "whisper-1"),
		Deployment:       getEnv("WHISPER_DEPLOYMENT", "whisper"),
		APIVersion:       getEnv("OPENAI_API_VERSION", "2024-06-01"),
		TranscriptionDir: transcriptionDir,
		StagingDir:       getEnv("STAGING_DIR", filepath.Join(transcriptionDir, "staging")),
		SyncMode:         boolEnv("SYNC_MODE"),
		CORSOrigins:      corsOrigins,
		ChunkLength:      time.Duration(chunkMinutes) * time.Minute,
		ChunkOverlap:     time.Duration(overlapSeconds) * time.Second,
		DirectLimit:      int64(directLimitMB) * 1024 * 1024,
		ChunkWorkers:     workers,
		StagingTTL:       time.Duration(ttlMinutes) * time.Minute,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
