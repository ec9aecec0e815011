package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/logger"
	tghelpers "github.com/m3rciful/tunebot/core/telegram/helpers"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// WithAdminCheck wraps h enforcing admin-only execution when adminOnly is set.
func WithAdminCheck(opts AdminOptions, adminOnly bool, h tele.HandlerFunc) tele.HandlerFunc {
	if !adminOnly {
		return h
	}
	return func(c tele.Context) error {
		user := c.Sender()
		if opts.AdminID == 0 || user == nil || user.ID != opts.AdminID {
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
		return h(c)
	}
}

// GroupAccessOptions gates group chats.
type GroupAccessOptions struct {
	// Enabled turns on group mode; without it group updates are ignored.
	Enabled    bool
	TopicsMode bool
	// Allowed decides whether a chat and topic pair may use the bot.
	Allowed func(chatID int64, topicID int) bool
}

// GroupAccess drops group updates unless group mode is on and the chat, and
// the topic in topics mode, is allow-listed. It runs before any handler so
// rejected updates never touch session state. Private chats pass through.
func GroupAccess(opts GroupAccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !tghelpers.IsGroup(c) {
				return next(c)
			}
			// Membership changes are logged by their handler even when denied.
			if c.Update().MyChatMember != nil {
				return next(c)
			}
			reason := ""
			topic := tghelpers.TopicOf(c, opts.TopicsMode)
			switch {
			case !opts.Enabled:
				reason = "group_mode_off"
			case opts.Allowed != nil && !opts.Allowed(c.Chat().ID, topic):
				reason = "not_allowed"
			}
			if reason == "" {
				return next(c)
			}
			logger.Debug(tghelpers.BuildContext(c), "tg", "tg.access",
				slog.String("status", "skip"),
				slog.String("reason", reason),
			)
			return nil
		}
	}
}
