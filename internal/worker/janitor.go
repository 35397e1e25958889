package worker

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// sweepInterval is how often the janitor scans the artifact directory.
const sweepInterval = time.Hour

// Janitor removes run artifact directories once they outlive the
// retention window. Run records keep their artifact paths; the download
// endpoints stop offering files that no longer exist.
type Janitor struct {
	logger   *slog.Logger
	dir      string
	ttl      time.Duration
	stopChan chan struct{}
}

// JanitorConfig holds janitor configuration
type JanitorConfig struct {
	Logger *slog.Logger
	Dir    string
	TTL    time.Duration
}

// NewJanitor creates a new artifact janitor
func NewJanitor(cfg *JanitorConfig) *Janitor {
	return &Janitor{
		logger:   cfg.Logger,
		dir:      cfg.Dir,
		ttl:      cfg.TTL,
		stopChan: make(chan struct{}),
	}
}

// Start sweeps once, then keeps sweeping on an hourly ticker until the
// context is canceled or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	j.logger.Info("Starting artifact janitor",
		slog.String("dir", j.dir),
		slog.Duration("ttl", j.ttl),
	)

	// Catch up on anything that expired while the service was down
	j.sweep()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Artifact janitor context canceled, stopping...")
			return nil

		case <-j.stopChan:
			j.logger.Info("Artifact janitor stop requested")
			return nil

		case <-ticker.C:
			j.sweep()
		}
	}
}

// Stop ends the sweep loop
func (j *Janitor) Stop() {
	close(j.stopChan)
}

// sweep removes per-run artifact directories older than the retention
// window. Each run writes its artifacts once, so the directory mtime is
// the completion time.
func (j *Janitor) sweep() {
	cutoff := time.Now().Add(-j.ttl)

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// No run has written artifacts yet
			return
		}
		j.logger.Warn("Failed to read artifact directory",
			slog.String("dir", j.dir),
			slog.String("error", err.Error()),
		)
		return
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(j.dir, entry.Name())); err != nil {
			j.logger.Warn("Failed to remove expired run artifacts",
				slog.String("run_id", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info("Expired run artifacts removed",
			slog.Int("count", removed),
			slog.Duration("ttl", j.ttl),
		)
	}
}
