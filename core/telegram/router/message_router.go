package router

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/tunebot/core/telegram"
	"github.com/m3rciful/tunebot/core/telegram/commands"
)

// Conversation picks the handler for free text given the sender's session,
// returning an empty name when it has nothing to do with the message.
type Conversation interface {
	Dispatch(c tele.Context) (name string, h tele.HandlerFunc)
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the text route: the conversation first, then command
// aliases typed as text, then the registry fallback.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()

		if conv != nil {
			if name, h := conv.Dispatch(c); name != "" && h != nil {
				return handleWithSummary(c, "text."+normalizeHandlerName(name), start, func() error {
					return h(c)
				})
			}
		}

		if reg != nil {
			if key, cmd, ok := lookupTyped(reg, c.Text()); ok {
				return handleWithSummary(c, "command."+normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	return []tg.Route{{Endpoint: tele.OnText, Handler: handler}}
}

// lookupTyped resolves "/cmd" and "/cmd@bot" forms telebot did not route.
func lookupTyped(reg *tg.Registry, text string) (string, commands.Command, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", commands.Command{}, false
	}
	key, cmd, ok := reg.LookupCommand(firstWord(text))
	return key, cmd, ok && cmd.Handler != nil
}

func firstWord(text string) string {
	for i, r := range text {
		if r == ' ' || r == '\n' || r == '@' {
			return text[:i]
		}
	}
	return text
}
