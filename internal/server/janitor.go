package server

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// CleanupUploads removes regular files in dir older than maxAge and returns
// how many were removed. A missing dir is not an error.
func CleanupUploads(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Failed to remove stale upload")
			continue
		}
		removed++
	}
	return removed, nil
}

// RunJanitor sweeps dir once immediately and then every interval until ctx is done.
func RunJanitor(ctx context.Context, dir string, maxAge, interval time.Duration) {
	sweep := func() {
		n, err := CleanupUploads(dir, maxAge, time.Now())
		if err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Upload cleanup failed")
			return
		}
		if n > 0 {
			log.Info().Int("removed", n).Str("dir", dir).Msg("Removed stale uploads")
		}
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
