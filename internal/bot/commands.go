package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/logger"
	"github.com/m3rciful/tunebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/tunebot/core/telegram/helpers"
	"github.com/m3rciful/tunebot/core/telegram/keyboard"
)

const statsWindow = 24 * time.Hour

func (a *App) registerCommands() {
	a.reg.RegisterCommand("/start", commands.Command{
		Handler:     a.cmdStart,
		Description: "Main menu",
		Scope:       commands.ScopePrivate,
	})
	a.reg.RegisterCommand("/help", commands.Command{
		Handler:          a.cmdHelp,
		Description:      "How to use the bot",
		GroupDescription: "How to use the bot in groups",
	})
	a.reg.RegisterCommand("/search", commands.Command{
		Handler:          a.cmdSearch,
		Description:      "Search music",
		GroupDescription: "Search music: /search <query>",
		Aliases:          []string{"/s"},
	})
	a.reg.RegisterCommand("/link", commands.Command{
		Handler:     a.cmdLink,
		Description: "Download from a YouTube link",
	})
	a.reg.RegisterCommand("/mystate", commands.Command{
		Handler:     a.cmdMyState,
		Description: "Show your session",
	})
	a.reg.RegisterCommand("/clearstate", commands.Command{
		Handler:     a.cmdClearState,
		Description: "Reset your session",
	})
	a.reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.cmdStats,
		Description: "Download statistics",
		AdminOnly:   true,
	})
}

func (a *App) cmdStart(c tele.Context) error {
	if tghelpers.IsGroup(c) {
		return a.reply(c, textGroupGreeting, nil)
	}
	a.coord.Reset(ctxOf(c), a.identity(c))
	return a.reply(c, textGreeting, mainMenu())
}

func (a *App) cmdHelp(c tele.Context) error {
	if tghelpers.IsGroup(c) {
		return a.reply(c, textGroupHelp, nil)
	}
	return a.reply(c, textHelp, mainMenu())
}

func (a *App) cmdSearch(c tele.Context) error {
	if query := commandArgs(c); query != "" {
		return a.runSearch(c, query)
	}
	return a.promptQuery(c)
}

// commandArgs returns the text after the command, also for "/cmd@bot args"
// forms routed as plain text.
func commandArgs(c tele.Context) string {
	msg := c.Message()
	if msg == nil {
		return ""
	}
	if p := strings.TrimSpace(msg.Payload); p != "" {
		return p
	}
	if !strings.HasPrefix(msg.Text, "/") {
		return ""
	}
	_, rest, _ := strings.Cut(msg.Text, " ")
	return strings.TrimSpace(rest)
}

func (a *App) cmdLink(c tele.Context) error {
	return a.promptLink(c)
}

func (a *App) promptQuery(c tele.Context) error {
	a.coord.PromptQuery(a.identity(c))
	return a.reply(c, textAskQuery, keyboard.ForceReply("Artist - title"))
}

func (a *App) promptLink(c tele.Context) error {
	a.coord.PromptLink(a.identity(c))
	return a.reply(c, textAskLink, keyboard.ForceReply("https://youtu.be/..."))
}

func (a *App) cmdMyState(c tele.Context) error {
	return a.reply(c, renderSummary(a.coord.Describe(a.identity(c))), nil)
}

func (a *App) cmdClearState(c tele.Context) error {
	a.coord.Reset(ctxOf(c), a.identity(c))
	var rm *tele.ReplyMarkup
	if !tghelpers.IsGroup(c) {
		rm = mainMenu()
	}
	return a.reply(c, textStateCleared, rm)
}

func (a *App) cmdStats(c tele.Context) error {
	ctx := ctxOf(c)
	qctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	sum, err := a.journal.Summary(qctx, time.Now().Add(-statsWindow))
	if err != nil {
		logger.Warn(ctx, component, "stats.fail", slog.String("err", err.Error()))
		return a.reply(c, failedText(err), nil)
	}
	return a.reply(c, renderStats(sum, statsWindow), nil)
}

// onUnknownText answers unrouted private text with a hint; groups stay quiet.
func (a *App) onUnknownText(c tele.Context) error {
	if tghelpers.IsGroup(c) {
		return nil
	}
	return a.reply(c, textHint, mainMenu())
}

func (a *App) onMembership(c tele.Context) error {
	upd := c.Update().MyChatMember
	if upd == nil || upd.NewChatMember == nil {
		return nil
	}
	ctx := ctxOf(c)
	chat := upd.Chat
	if chat == nil {
		return nil
	}
	switch upd.NewChatMember.Role {
	case tele.Member, tele.Administrator:
		if upd.OldChatMember != nil && (upd.OldChatMember.Role == tele.Member || upd.OldChatMember.Role == tele.Administrator) {
			return nil
		}
		if !a.cfg.Access.GroupMode || !a.cfg.Access.IsAllowedChat(chat.ID, 0) {
			logger.Info(ctx, component, "group.join.denied", slog.Int64("chat_id", chat.ID))
			return nil
		}
		logger.Info(ctx, component, "group.join", slog.Int64("chat_id", chat.ID), slog.String("title", chat.Title))
		a.send.Notify(ctx, tghelpers.Target{Chat: chat}, textGroupGreeting, nil)
	case tele.Left, tele.Kicked:
		logger.Info(ctx, component, "group.leave",
			slog.Int64("chat_id", chat.ID),
			slog.String("role", string(upd.NewChatMember.Role)),
		)
	}
	return nil
}
