package middleware

import (
	"log/slog"
	"time"

	"github.com/maypok86/otter"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/logger"
	tghelpers "github.com/m3rciful/tunebot/core/telegram/helpers"
)

// RateLimitOptions configures per-user flood control of incoming updates.
type RateLimitOptions struct {
	// Interval is the steady-state spacing between accepted updates.
	Interval time.Duration
	// Burst allows short runs above the steady rate.
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Capacity bounds the number of tracked users.
	Capacity int
	// Idle is how long a silent user's bucket is kept. Zero derives it
	// from Interval and Burst.
	Idle time.Duration
}

// UpdateKind names the update type for exclusions and metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	case upd.MyChatMember != nil:
		return "my_chat_member"
	}
	return "other"
}

// RateLimitMiddleware drops updates from a user that exceed a token bucket
// of Burst tokens refilled every Interval. Every accepted or dropped update
// restarts the bucket's idle timer, so only users who went quiet lose it.
func RateLimitMiddleware(opts RateLimitOptions) (tele.MiddlewareFunc, error) {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 50_000
	}
	idle := opts.Idle
	if idle <= 0 {
		idle = max(opts.Interval*time.Duration(opts.Burst)*4, time.Minute)
	}
	buckets, err := otter.MustBuilder[int64, *rate.Limiter](opts.Capacity).
		WithTTL(idle).
		Build()
	if err != nil {
		return nil, err
	}
	limiterFor := func(userID int64) *rate.Limiter {
		if l, ok := buckets.Get(userID); ok {
			buckets.Set(userID, l)
			return l
		}
		l := rate.NewLimiter(rate.Every(opts.Interval), opts.Burst)
		// Losing a race here only hands the user a fresh bucket.
		if !buckets.SetIfAbsent(userID, l) {
			if cur, ok := buckets.Get(userID); ok {
				return cur
			}
		}
		return l
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}
			if limiterFor(user.ID).Allow() {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "skip"),
				slog.String("reason", "flood"),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}, nil
}
