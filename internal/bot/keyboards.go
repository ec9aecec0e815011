package bot

import (
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/pagination"
	"github.com/m3rciful/tunebot/core/telegram/callbacks"
	"github.com/m3rciful/tunebot/core/telegram/format"
	"github.com/m3rciful/tunebot/core/telegram/keyboard"
)

// Callback keys.
const (
	cbLink        = "link"
	cbSearch      = "search"
	cbBackToMain  = "back_to_main"
	cbNext        = "search_next"
	cbPrev        = "search_prev"
	cbFirst       = "search_first"
	cbNewSearch   = "new_search"
	cbSearchQuery = "search_query"
	cbDownload    = "download"
)

const (
	buttonTitleLen = 20
	itemTitleLen   = 40
)

func backRow() []keyboard.InlineBtn {
	return []keyboard.InlineBtn{{Text: "↩️ Menu", Unique: cbBackToMain}}
}

func mainMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "🔗 Link", Unique: cbLink},
		{Text: "🔎 Search", Unique: cbSearch},
	})
}

// resultsMarkup lays out one download button per item on the page, then
// navigation, a new-search button and the way back to the menu.
func resultsMarkup(snap pagination.Snapshot) *tele.ReplyMarkup {
	page := snap.PageSlice()
	rows := make([][]keyboard.InlineBtn, 0, len(page)+3)
	for i, item := range page {
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   "⬇️ " + strconv.Itoa(i+1) + ". " + format.Truncate(item.Title, buttonTitleLen),
			Unique: cbDownload,
			Data:   item.ExternalID,
		}})
	}

	var nav []keyboard.InlineBtn
	if snap.HasPrev() {
		if snap.Page > 1 {
			nav = append(nav, keyboard.InlineBtn{Text: "⏮ First", Unique: cbFirst})
		}
		nav = append(nav, keyboard.InlineBtn{Text: "⬅️ Prev", Unique: cbPrev})
	}
	if snap.HasNext() {
		nav = append(nav, keyboard.InlineBtn{Text: "Next ➡️", Unique: cbNext})
	}
	rows = append(rows, nav,
		[]keyboard.InlineBtn{{Text: "🔎 New search", Unique: cbNewSearch}},
		backRow(),
	)
	return keyboard.InlineButtonsRows(rows...)
}

func suggestionsMarkup(alts []string) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, 0, len(alts)+1)
	for _, s := range alts {
		payload := callbacks.FitPayload(cbSearchQuery, s)
		if payload == "" {
			continue
		}
		rows = append(rows, []keyboard.InlineBtn{{Text: "🔍 " + payload, Unique: cbSearchQuery, Data: payload}})
	}
	rows = append(rows, backRow())
	return keyboard.InlineButtonsRows(rows...)
}
