// Package sender runs outbound Bot API calls off the handler goroutine with
// bounded retries.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/logger"
	"github.com/m3rciful/tunebot/core/telegram/netutil"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls with retries, either queued
// (Enqueue) or on the caller's goroutine (Do).
type Dispatcher struct {
	opts   Options
	jobs   chan job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 20 * time.Second
	}

	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules run for asynchronous execution. run must be safe to
// repeat since failed attempts are retried.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs fn on the calling goroutine with the same retry policy as queued
// jobs. It is used when the caller needs the result, e.g. a sent message id.
func (d *Dispatcher) Do(ctx context.Context, action string, fn func() error) error {
	return d.execute(job{ctx: ctx, action: action, run: fn})
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		_ = d.execute(j)
	}
}

func (d *Dispatcher) execute(j job) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// Queued jobs outlive their handler; only the values of ctx matter here.
	runCtx := context.WithoutCancel(ctx)

	start := time.Now()
	attempt := 0
	var lastErr error

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.RetryBackoff

	_, err := backoff.Retry(runCtx, func() (struct{}, error) {
		attempt++
		err := j.run()
		if err == nil {
			return struct{}{}, nil
		}
		lastErr = err
		var flood tele.FloodError
		if errors.As(err, &flood) && flood.RetryAfter > 0 {
			return struct{}{}, backoff.RetryAfter(flood.RetryAfter)
		}
		if !netutil.ShouldRetry(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(d.opts.MaxRetries+1)),
		backoff.WithMaxElapsedTime(d.opts.MaxDuration),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debug(ctx, component, "send.retry",
				append(sendAttrs(j),
					slog.String("status", "retry"),
					slog.Int("attempts", attempt),
					slog.Duration("backoff_ms", next),
				)...,
			)
		}),
	)
	took := logger.Took(start)
	if err == nil {
		logger.Debug(ctx, component, "send",
			append(sendAttrs(j),
				slog.String("status", "ok"),
				slog.Int("attempts", attempt),
				slog.Duration("duration_ms", took),
			)...,
		)
		return nil
	}

	if lastErr == nil {
		lastErr = err
	}
	d.errs.Add(1)
	logger.Error(ctx, component, "send",
		append(sendAttrs(j),
			slog.String("status", "fail"),
			slog.String("err", sanitizeErrorMessage(lastErr)),
			slog.String("err_code", classifyError(lastErr)),
			slog.Int("attempts", attempt),
			slog.Duration("duration_ms", took),
		)...,
	)
	return lastErr
}

func sendAttrs(j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("op", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}
