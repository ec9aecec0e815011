package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/logger"
	"github.com/m3rciful/tunebot/core/pagination"
	"github.com/m3rciful/tunebot/core/session"
	"github.com/m3rciful/tunebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/tunebot/core/telegram/helpers"
)

// runSearch admits query, runs it and renders the first page. Rejections are
// answered here and reported as handled.
func (a *App) runSearch(c tele.Context, query string) error {
	ctx := ctxOf(c)
	key := a.identity(c)

	switch err := a.coord.StartSearch(ctx, key, query); {
	case errors.Is(err, session.ErrQuotaExceeded):
		a.coord.ConsumeQueryPrompt(key)
		return a.reply(c, quotaText(a.coord.MaxRequests()), nil)
	case errors.Is(err, session.ErrQueryTooShort):
		return a.reply(c, textQueryTooShort, nil)
	case err != nil:
		return err
	}

	to := tghelpers.TargetOf(c)
	status, err := a.send.HTML(ctx, to, textSearching, nil)
	if err != nil {
		logger.Warn(ctx, component, "search.status.fail", slog.String("err", err.Error()))
	}

	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, a.cfg.Search.Timeout)
	items, err := a.search.Search(sctx, query)
	cancel()
	if status != nil {
		a.send.Delete(ctx, status)
	}

	if err != nil {
		a.metrics.Search("failed")
		logger.Warn(ctx, component, "search.fail",
			slog.String("query", logger.SanitizeLimit(query, 64)),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
			slog.String("err", err.Error()),
		)
		if rerr := a.reply(c, failedText(err), mainMenuFor(c)); rerr != nil {
			return rerr
		}
		return fmt.Errorf("search: %w", err)
	}
	if len(items) == 0 {
		a.metrics.Search("empty")
		logger.Info(ctx, component, "search.empty", slog.String("query", logger.SanitizeLimit(query, 64)))
		return a.reply(c, noResultsText(query), suggestionsMarkup(suggestions(query)))
	}

	snap := pagination.New(items, query, a.coord.PerPage())
	msg, err := a.send.HTML(ctx, to, renderPage(snap), resultsMarkup(snap))
	var msgID int
	if msg != nil {
		msgID = msg.ID
	}
	a.coord.RecordResults(ctx, key, c.Chat().ID, msgID, items, query)
	logger.Info(ctx, component, "search.done",
		slog.Int("count", len(items)),
		slog.Int("message_id", msgID),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return err
}

func mainMenuFor(c tele.Context) *tele.ReplyMarkup {
	if tghelpers.IsGroup(c) {
		return nil
	}
	return mainMenu()
}

// resultsMessage returns the message a navigation button was pressed on.
func resultsMessage(c tele.Context) (int64, *tele.Message) {
	cb := c.Callback()
	if cb == nil || cb.Message == nil || c.Chat() == nil {
		return 0, nil
	}
	return c.Chat().ID, cb.Message
}

func (a *App) onNavigate(dir session.Direction) tele.HandlerFunc {
	return func(c tele.Context) error {
		chatID, msg := resultsMessage(c)
		if msg == nil {
			return callbacks.Answer(c, textExpired, true)
		}
		nav, err := a.coord.Navigate(ctxOf(c), chatID, msg.ID, dir, a.identity(c))
		if err != nil {
			return a.answerNavError(c, err)
		}
		if nav.AtEdge {
			text := textLastPage
			if dir == session.Prev {
				text = textFirstPage
			}
			return callbacks.Answer(c, text, false)
		}
		return a.showPage(c, chatID, msg, nav)
	}
}

func (a *App) onFirstPage(c tele.Context) error {
	chatID, msg := resultsMessage(c)
	if msg == nil {
		return callbacks.Answer(c, textExpired, true)
	}
	nav, err := a.coord.Jump(ctxOf(c), chatID, msg.ID, 0, a.identity(c))
	if err != nil {
		return a.answerNavError(c, err)
	}
	return a.showPage(c, chatID, msg, nav)
}

func (a *App) answerNavError(c tele.Context, err error) error {
	if session.IsRejection(err) || errors.Is(err, pagination.ErrOutOfRange) {
		return callbacks.Answer(c, textExpired, true)
	}
	return err
}

// showPage edits the results message in place. Results found through the
// identity are bound to the message so later presses by anyone resolve.
func (a *App) showPage(c tele.Context, chatID int64, msg *tele.Message, nav session.Navigation) error {
	ctx := ctxOf(c)
	if err := a.send.Edit(ctx, msg, renderPage(nav.Snapshot), resultsMarkup(nav.Snapshot)); err != nil {
		return err
	}
	if nav.Source == session.SourceIdentity {
		a.coord.BindMessage(chatID, msg.ID, nav.Snapshot)
	}
	return nil
}

func (a *App) onSearchQuery(c tele.Context) error {
	query := callbacks.PayloadString(c)
	if query == "" {
		return callbacks.Answer(c, textExpired, true)
	}
	_ = callbacks.Answer(c, "", false)
	return a.runSearch(c, query)
}

func (a *App) onSearchButton(c tele.Context) error {
	_ = callbacks.Answer(c, "", false)
	return a.promptQuery(c)
}

func (a *App) onLinkButton(c tele.Context) error {
	_ = callbacks.Answer(c, "", false)
	return a.promptLink(c)
}

func (a *App) onBackToMain(c tele.Context) error {
	ctx := ctxOf(c)
	a.coord.Reset(ctx, a.identity(c))
	_, msg := resultsMessage(c)
	if msg == nil || tghelpers.IsGroup(c) {
		return a.reply(c, textMenu, mainMenuFor(c))
	}
	return a.send.Edit(ctx, msg, textMenu, mainMenu())
}

func (a *App) registerCallbacks() error {
	handlers := map[string]tele.HandlerFunc{
		cbLink:        a.onLinkButton,
		cbSearch:      a.onSearchButton,
		cbBackToMain:  a.onBackToMain,
		cbNext:        a.onNavigate(session.Next),
		cbPrev:        a.onNavigate(session.Prev),
		cbFirst:       a.onFirstPage,
		cbNewSearch:   a.onSearchButton,
		cbSearchQuery: a.onSearchQuery,
		cbDownload:    a.onDownloadButton,
	}
	for key, h := range handlers {
		if err := a.reg.RegisterCallback(key, h); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}
	a.reg.SetCallbackNotFound(func(c tele.Context) error {
		return callbacks.Answer(c, textExpired, false)
	})
	return nil
}
