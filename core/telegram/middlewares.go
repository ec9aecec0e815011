package telegram

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/tunebot/core/config"
	"github.com/m3rciful/tunebot/core/telegram/middleware"
)

// MiddlewareHooks lets the bot plug user-facing reactions into the chain.
type MiddlewareHooks struct {
	Updates   middleware.UpdateCounter
	OnLimited tele.HandlerFunc
	OnPanic   tele.HandlerFunc
}

// DefaultMiddlewares builds the shared middleware chain. Access control runs
// before identity resolution so denied updates never reach session state.
func DefaultMiddlewares(cfg *coreconfig.Config, hooks MiddlewareHooks) ([]Middleware, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config provided")
	}
	mws := []Middleware{
		{Name: "recover", Use: middleware.Recover(hooks.OnPanic)},
		{Name: "logger", Use: middleware.Logger()},
		{Name: "metrics", Use: middleware.Metrics(hooks.Updates)},
		{Name: "access", Use: middleware.GroupAccess(middleware.GroupAccessOptions{
			Enabled:    cfg.Access.GroupMode,
			TopicsMode: cfg.Access.TopicsMode,
			Allowed:    cfg.Access.IsAllowedChat,
		})},
		{Name: "identity", Use: middleware.Identity(cfg.Access.TopicsMode)},
	}

	interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
	if interval > 0 {
		ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, t := range cfg.RateLimit.ExcludeUpdates {
			ex[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
		}
		limit, err := middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Interval:  interval,
			Burst:     cfg.RateLimit.Burst,
			Exclude:   ex,
			OnLimited: hooks.OnLimited,
		})
		if err != nil {
			return nil, fmt.Errorf("telegram: rate limit: %w", err)
		}
		mws = append(mws, Middleware{Name: "rate_limit", Use: limit})
	}
	return mws, nil
}
