package media

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/m3rciful/tunebot/core/logger"
)

const (
	// DefaultMaxAge is how long a file may linger in the downloads dir.
	DefaultMaxAge = time.Hour
	// DefaultSweepInterval is the janitor tick.
	DefaultSweepInterval = 10 * time.Minute
)

// Janitor deletes leftovers from the downloads directory. Downloads clean up
// after themselves, so it only catches abandoned removals and crashes.
type Janitor struct {
	Dir      string
	MaxAge   time.Duration
	Interval time.Duration
	Now      func() time.Time
}

func (j *Janitor) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// Run performs a full cleanup, then sweeps old files every Interval until
// ctx ends.
func (j *Janitor) Run(ctx context.Context) {
	if n, err := j.ForceCleanup(ctx); err != nil {
		logger.Warn(ctx, component, "janitor.force.fail", slog.String("err", err.Error()))
	} else {
		logger.Info(ctx, component, "janitor.force", slog.Int("count", n))
	}

	interval := j.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := j.Sweep(ctx)
			if err != nil {
				logger.Warn(ctx, component, "janitor.sweep.fail", slog.String("err", err.Error()))
				continue
			}
			if n > 0 {
				logger.Info(ctx, component, "janitor.sweep", slog.Int("count", n))
			}
		}
	}
}

// Sweep removes regular files older than MaxAge and returns how many went.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	maxAge := j.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cutoff := j.now().Add(-maxAge)
	return j.remove(ctx, func(info fs.FileInfo) bool {
		return info.ModTime().Before(cutoff)
	})
}

// ForceCleanup removes every regular file regardless of age. The directory
// is created when missing.
func (j *Janitor) ForceCleanup(ctx context.Context) (int, error) {
	return j.remove(ctx, func(fs.FileInfo) bool { return true })
}

func (j *Janitor) remove(ctx context.Context, match func(fs.FileInfo) bool) (int, error) {
	entries, err := os.ReadDir(j.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, os.MkdirAll(j.Dir, 0o755)
	}
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || !match(info) {
			continue
		}
		if RemoveFile(ctx, filepath.Join(j.Dir, e.Name()), WithRemoveTries(3)) {
			count++
		}
	}
	return count, nil
}
