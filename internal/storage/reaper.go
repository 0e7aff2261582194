package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Reaper sweeps the staging directory for files older than a TTL. Staged
// files are normally removed by their owning worker; the reaper is the
// backstop for files orphaned by a crash, since task state is in-memory
// only and forgets them on restart.
type Reaper struct {
	dir      string
	ttl      time.Duration
	interval time.Duration
	log      *logrus.Logger
}

func NewReaper(dir string, ttl time.Duration, log *logrus.Logger) *Reaper {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Reaper{dir: dir, ttl: ttl, interval: interval, log: log}
}

// Run sweeps periodically until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.WithFields(logrus.Fields{
					"removed": n,
					"dir":     r.dir,
				}).Info("reaped orphaned staging files")
			}
		}
	}
}

// Sweep removes stale files once and returns how many were deleted.
func (r *Reaper) Sweep() int {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.log.WithError(err).Warn("staging sweep failed")
		return 0
	}

	cutoff := time.Now().Add(-r.ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed
}
