// Package bot is the composition root of tunebot: it builds the session
// stores, the media collaborators and the handlers, and hands them to the
// Telegram runtime.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/tunebot/core/config"
	"github.com/m3rciful/tunebot/core/jobs"
	"github.com/m3rciful/tunebot/core/journal"
	"github.com/m3rciful/tunebot/core/logger"
	"github.com/m3rciful/tunebot/core/media"
	"github.com/m3rciful/tunebot/core/metrics"
	"github.com/m3rciful/tunebot/core/ratelimit"
	"github.com/m3rciful/tunebot/core/results"
	"github.com/m3rciful/tunebot/core/session"
	"github.com/m3rciful/tunebot/core/state"
	tg "github.com/m3rciful/tunebot/core/telegram"
	"github.com/m3rciful/tunebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/tunebot/core/telegram/helpers"
	"github.com/m3rciful/tunebot/core/telegram/router"
	tgsender "github.com/m3rciful/tunebot/core/telegram/sender"
)

const component = "bot"

// Deps overrides collaborators. Zero fields get the production defaults.
type Deps struct {
	// DB enables the download journal when set.
	DB         *sqlx.DB
	Journal    journal.Recorder
	Searcher   media.Searcher
	Downloader media.Downloader
	Metrics    *metrics.Recorder
}

// App holds everything the handlers share.
type App struct {
	cfg   *coreconfig.Config
	coord *session.Coordinator

	search  media.Searcher
	down    media.Downloader
	pool    *media.Pool
	janitor *media.Janitor
	journal journal.Recorder
	metrics *metrics.Recorder

	reg  *tg.Registry
	send *tghelpers.Sender

	cancel context.CancelFunc
	bg     sync.WaitGroup
}

// New builds the application from cfg.
func New(cfg *coreconfig.Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bot: nil config provided")
	}

	rec := deps.Metrics
	if rec == nil {
		rec = metrics.New()
	}

	states, err := state.New(state.Options{
		TTL:      cfg.Session.StateTTL,
		Capacity: cfg.Session.StateCapacity,
	})
	if err != nil {
		return nil, fmt.Errorf("bot: state store: %w", err)
	}
	res, err := results.New(results.Options{
		TTL:      cfg.Session.ResultsTTL,
		Capacity: cfg.Session.ResultsCapacity,
	})
	if err != nil {
		states.Close()
		return nil, fmt.Errorf("bot: results store: %w", err)
	}
	limiter := ratelimit.New()
	tracker := jobs.New()

	coord, err := session.New(session.Options{
		MaxRequests: cfg.Session.MaxRequestsPerUser,
		PerPage:     cfg.Session.PerPage,
		Limiter:     limiter,
		States:      states,
		Results:     res,
		Jobs:        tracker,
		Metrics:     rec,
	})
	if err != nil {
		states.Close()
		res.Close()
		return nil, fmt.Errorf("bot: session: %w", err)
	}

	a := &App{
		cfg:     cfg,
		coord:   coord,
		search:  deps.Searcher,
		down:    deps.Downloader,
		pool:    media.NewPool(cfg.Downloads.Workers),
		journal: deps.Journal,
		metrics: rec,
		reg:     tg.NewRegistry(),
		janitor: &media.Janitor{
			Dir:      cfg.Downloads.Dir,
			MaxAge:   cfg.Downloads.MaxAge,
			Interval: cfg.Downloads.SweepInterval,
		},
	}

	if a.search == nil || a.down == nil {
		yt := media.NewYTDLP(media.YTDLPOptions{
			Dir:          cfg.Downloads.Dir,
			SearchLimit:  cfg.Search.Limit,
			MaxDuration:  cfg.Search.MaxDuration,
			MaxFileSize:  int64(cfg.Downloads.MaxFileSizeMB) << 20,
			AudioQuality: cfg.Downloads.AudioQuality,
		})
		if a.search == nil {
			a.search = yt
		}
		if a.down == nil {
			a.down = yt
		}
	}
	if a.journal == nil {
		if deps.DB != nil {
			a.journal = journal.NewRepo(deps.DB)
		} else {
			a.journal = journal.Nop{}
		}
	}

	rec.GaugeFunc("state_bundles", "Identity state bundles resident in memory.", func() float64 {
		return float64(states.Len())
	})
	rec.GaugeFunc("result_entries", "Message-bound result snapshots resident in memory.", func() float64 {
		return float64(res.Len())
	})
	rec.GaugeFunc("active_jobs", "Downloads registered in the job tracker.", func() float64 {
		return float64(tracker.Len())
	})
	rec.GaugeFunc("quota_users", "Users with requests inside the hourly window.", func() float64 {
		return float64(limiter.Users())
	})

	a.registerCommands()
	if err := a.registerCallbacks(); err != nil {
		coord.Close()
		return nil, err
	}
	a.reg.SetTextFallback(a.onUnknownText)
	return a, nil
}

// Coordinator exposes the session facade, mainly for tests and diagnostics.
func (a *App) Coordinator() *session.Coordinator { return a.coord }

// Registry returns the command and callback registry.
func (a *App) Registry() *tg.Registry { return a.reg }

// SetSender replaces the outbound sender. RunTelegram provides it on start.
func (a *App) SetSender(s *tghelpers.Sender) { a.send = s }

func (a *App) topicsMode() bool { return a.cfg.Access.TopicsMode }

func (a *App) identity(c tele.Context) state.Key {
	return tghelpers.IdentityOf(c, a.topicsMode())
}

func ctxOf(c tele.Context) context.Context {
	return tghelpers.BuildContext(c)
}

// TelegramRunOptions wires the middleware chain, routes and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	mws, err := tg.DefaultMiddlewares(a.cfg, tg.MiddlewareHooks{
		Updates:   a.metrics,
		OnLimited: a.onLimited,
		OnPanic:   a.onPanic,
	})
	if err != nil {
		return tg.RunOptions{}, err
	}

	routes := router.CommandRoutes(a.reg, router.CommandRouteOptions{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: a.onAdminReject,
	})
	routes = append(routes, router.CallbackRoute(a.reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a, a.reg, router.TextOptions{})...)
	routes = append(routes, router.EventRoute(tele.OnMyChatMember, "my_chat_member", a.onMembership))

	return tg.RunOptions{
		Config:   a.cfg,
		Registry: a.reg,
		DispatcherOptions: tgsender.Options{
			Workers:    a.cfg.Sender.Workers,
			QueueSize:  a.cfg.Sender.QueueSize,
			MaxRetries: a.cfg.Sender.Retries,
		},
		Middlewares: mws,
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt tg.Runtime) error {
	a.SetSender(rt.Sender)

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		a.janitor.Run(bgCtx)
	}()
	if addr := a.cfg.Metrics.Listen; addr != "" {
		a.bg.Add(1)
		go func() {
			defer a.bg.Done()
			if err := metrics.Serve(bgCtx, addr, a.metrics); err != nil {
				logger.Error(bgCtx, "metrics", "serve.fail", slog.String("err", err.Error()))
			}
		}()
	}

	logger.Info(ctx, component, "start",
		slog.Int("workers", a.pool.Size()),
		slog.Int("max_requests", a.coord.MaxRequests()),
		slog.Bool("group_mode", a.cfg.Access.GroupMode),
		slog.Bool("topics_mode", a.cfg.Access.TopicsMode),
		slog.Bool("journal", a.cfg.Database.Enabled),
	)
	return nil
}

// stop waits for running downloads before the dispatcher closes, so their
// final messages still go out.
func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	start := time.Now()
	a.pool.Wait()
	if a.cancel != nil {
		a.cancel()
	}
	a.bg.Wait()
	a.coord.Close()
	logger.Info(ctx, component, "stop", slog.Duration("duration", logger.RoundMS(time.Since(start))))
	return nil
}

func (a *App) onLimited(c tele.Context) error {
	if c.Callback() != nil {
		return callbacks.Answer(c, textSlowDown, false)
	}
	return nil
}

func (a *App) onPanic(c tele.Context) error {
	if c.Callback() != nil {
		return callbacks.Answer(c, textPanic, true)
	}
	if c.Chat() == nil || a.send == nil {
		return nil
	}
	a.send.Notify(ctxOf(c), tghelpers.TargetOf(c), textPanic, nil)
	return nil
}

func (a *App) onAdminReject(c tele.Context) error {
	return a.reply(c, textAdminOnly, nil)
}

// reply answers into the chat and topic of the update.
func (a *App) reply(c tele.Context, text string, rm *tele.ReplyMarkup) error {
	_, err := a.send.HTML(ctxOf(c), tghelpers.TargetOf(c), text, rm)
	return err
}
