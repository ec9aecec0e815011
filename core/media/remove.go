package media

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/m3rciful/tunebot/core/logger"
)

// RemoveTries bounds removal attempts before a file is abandoned.
const RemoveTries = 5

type removeConfig struct {
	tries   uint
	initial time.Duration
	max     time.Duration
	onDone  func(removed bool)
}

// RemoveOption tunes RemoveFile.
type RemoveOption func(*removeConfig)

// WithRemoveBackoff overrides the first and the maximum retry interval.
func WithRemoveBackoff(initial, max time.Duration) RemoveOption {
	return func(c *removeConfig) {
		c.initial = initial
		c.max = max
	}
}

// WithRemoveTries overrides the attempt count.
func WithRemoveTries(n uint) RemoveOption {
	return func(c *removeConfig) {
		if n > 0 {
			c.tries = n
		}
	}
}

// WithRemoveResult registers a callback receiving the final outcome, used
// for metrics.
func WithRemoveResult(fn func(removed bool)) RemoveOption {
	return func(c *removeConfig) { c.onDone = fn }
}

// RemoveFile deletes path, retrying with exponential backoff. A file that is
// already gone counts as removed. When every attempt fails the file is
// logged and abandoned for the janitor; the caller never sees an error.
func RemoveFile(ctx context.Context, path string, opts ...RemoveOption) bool {
	if path == "" {
		return true
	}
	cfg := removeConfig{tries: RemoveTries, initial: 500 * time.Millisecond, max: 4 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.initial
	b.MaxInterval = cfg.max

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := os.Remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return struct{}{}, nil
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debug(ctx, component, "remove.retry",
				slog.String("status", "retry"),
				slog.String("path", path),
				slog.String("err", err.Error()),
				slog.Duration("backoff_ms", next),
			)
		}),
	)
	removed := err == nil
	if !removed {
		logger.Warn(ctx, component, "remove.abandon",
			slog.String("status", "fail"),
			slog.String("path", path),
			slog.Int("attempts", int(cfg.tries)),
			slog.String("err", err.Error()),
		)
	}
	if cfg.onDone != nil {
		cfg.onDone(removed)
	}
	return removed
}

// RemoveFiles removes every path with RemoveFile.
func RemoveFiles(ctx context.Context, paths []string, opts ...RemoveOption) {
	for _, p := range paths {
		RemoveFile(ctx, p, opts...)
	}
}
