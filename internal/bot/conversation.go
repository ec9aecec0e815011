package bot

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/tunebot/core/telegram/helpers"
)

// Dispatch routes free text by the sender's session: a pending query prompt
// wins over a pending link prompt, and pasted links start downloads where
// direct links are allowed.
func (a *App) Dispatch(c tele.Context) (string, tele.HandlerFunc) {
	text := strings.TrimSpace(c.Text())
	if text == "" || strings.HasPrefix(text, "/") {
		return "", nil
	}
	key := a.identity(c)
	states := a.coord.States()

	if states.IsWaitingForQuery(key) {
		return "search", func(c tele.Context) error {
			return a.runSearch(c, text)
		}
	}
	if states.IsWaitingForLink(key) {
		return "link", func(c tele.Context) error {
			a.coord.ConsumeLinkPrompt(key)
			id, ok := ExtractVideoID(text)
			if !ok {
				return a.reply(c, textInvalidLink, mainMenuFor(c))
			}
			return a.startLinkDownload(c, id)
		}
	}

	id, ok := ExtractVideoID(text)
	if !ok {
		return "", nil
	}
	if tghelpers.IsGroup(c) && !a.cfg.Access.DirectLinksEnabled() {
		return "", nil
	}
	return "link_direct", func(c tele.Context) error {
		return a.startLinkDownload(c, id)
	}
}
