package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/tunebot/core/telegram"
	"github.com/m3rciful/tunebot/core/telegram/callbacks"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes every callback through the
// registry. Handlers may answer the query themselves via callbacks.Answer;
// otherwise an empty answer clears the client spinner.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		cbHandler, ok := reg.GetCallback(key)
		if !ok || cbHandler == nil {
			cbHandler = reg.CallbackNotFound()
			if cbHandler == nil {
				cbHandler = opts.NotFound
			}
			extras = append(extras, slog.String("reason", "not_found"))
		}
		// Route by key alone: the payload stays in Data for the handler.
		cb := c.Callback()
		cb.Unique, cb.Data = key, callbacks.CallbackPayload(c)

		err := handleWithSummary(c, name, start, func() error {
			if cbHandler == nil {
				return nil
			}
			return cbHandler(c)
		}, extras...)
		if !callbacks.Answered(c) {
			_ = c.Respond()
		}
		return err
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
