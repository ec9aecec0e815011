package middleware

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/logger"
	tghelpers "github.com/m3rciful/tunebot/core/telegram/helpers"
)

// Identity resolves the session key of the update once and exposes it to
// handlers through helpers.IdentityOf.
func Identity(topicsMode bool) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil {
				return next(c)
			}
			key := tghelpers.IdentityOf(c, topicsMode)
			tghelpers.StoreIdentity(c, key)
			if key.TopicID != 0 {
				ctx := logger.WithTopic(tghelpers.BuildContext(c), key.TopicID)
				tghelpers.StoreContext(c, ctx)
			}
			return next(c)
		}
	}
}
