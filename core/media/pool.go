package media

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/m3rciful/tunebot/core/logger"
)

// DefaultWorkers bounds concurrent downloads when no size is configured.
const DefaultWorkers = 4

// Pool runs jobs on goroutines, at most n at a time. Submitting never blocks
// the caller; excess jobs wait for a slot on their own goroutine.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
	wg   sync.WaitGroup
}

// NewPool returns a pool with n slots.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = DefaultWorkers
	}
	return &Pool{sem: semaphore.NewWeighted(int64(n)), size: int64(n)}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return int(p.size) }

// Go schedules fn. If ctx ends before a slot frees up, fn is skipped.
// A panic in fn is logged and swallowed so one bad job cannot take the
// process down.
func (p *Pool) Go(ctx context.Context, fn func(ctx context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			logger.Warn(ctx, component, "pool.skip", slog.String("err", err.Error()))
			return
		}
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, component, "pool.panic", slog.Any("panic", r))
			}
		}()
		fn(ctx)
	}()
}

// Wait blocks until every scheduled job returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
