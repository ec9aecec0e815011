package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/logger"
	tghelpers "github.com/m3rciful/tunebot/core/telegram/helpers"
)

// Recover catches handler panics so one bad update cannot stop the bot.
// onPanic, when set, may tell the user the operation failed.
func Recover(onPanic tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
					slog.String("err", fmt.Sprint(r)),
					slog.String("stack", string(debug.Stack())),
				)
				if onPanic != nil {
					_ = onPanic(c)
				}
				err = nil
			}()
			return next(c)
		}
	}
}

// RecoverMiddleware is Recover without a user notice.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return Recover(nil)(next)
}
