package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/tunebot/core/journal"
	"github.com/m3rciful/tunebot/core/pagination"
	"github.com/m3rciful/tunebot/core/session"
	"github.com/m3rciful/tunebot/core/telegram/format"
)

const (
	textGreeting = "👋 Hi! I find music on YouTube and send it to you as MP3.\n\n" +
		"Send me a YouTube link or search by song name.\nChoose an action:"
	textGroupGreeting = "👋 Hi! Use /search &lt;query&gt; to find music, or paste a YouTube link."
	textHelp          = "<b>How to use</b>\n\n" +
		"🔎 /search &lt;query&gt; finds tracks, then tap a result to download it.\n" +
		"🔗 /link asks for a YouTube link; you can also just paste one.\n" +
		"ℹ️ /mystate shows your session and quota.\n" +
		"🧹 /clearstate starts over."
	textGroupHelp = "<b>How to use in groups</b>\n\n" +
		"🔎 /search &lt;query&gt; finds tracks; anyone in the chat can page through the results.\n" +
		"🔗 Paste a YouTube link to download it."
	textMenu          = "Choose an action:"
	textAskQuery      = "🔎 Send me the song or artist name:"
	textAskLink       = "🔗 Send me a YouTube link:"
	textInvalidLink   = "That doesn't look like a YouTube link. Try again with /link."
	textHint          = "Send a YouTube link or use /search to find music."
	textQueryTooShort = "Please enter at least 3 characters."
	textSearching     = "🔍 Searching, please wait..."
	textStartDownload = "Starting download..."
	textDownloading   = "⏳ Downloading audio..."
	textAlreadyActive = "This track is already downloading."
	textExpired       = "These results have expired. Please search again."
	textFirstPage     = "This is the first page."
	textLastPage      = "This is the last page."
	textStateCleared  = "🧹 Your session was cleared."
	textAdminOnly     = "This command is for the bot admin."
	textSlowDown      = "Too many requests, slow down a bit."
	textPanic         = "Something went wrong. Please try again."
	textTooLarge      = "❌ The file is larger than the 50 MB Telegram limit."
)

func quotaText(max int) string {
	return fmt.Sprintf("⚠️ Request limit reached (%d per hour). Please wait and try again later.", max)
}

func failedText(reason error) string {
	return "❌ Operation failed, reason: " + format.Escape(format.Truncate(reason.Error(), 200))
}

func noResultsText(query string) string {
	return fmt.Sprintf("🔍 Nothing found for %s.\n\n"+
		"Tips:\n✓ Try a more precise query\n✓ Include the artist and the track name\n✓ Check the spelling",
		format.Bold(query))
}

func kindIcon(k pagination.Kind) string {
	if k == pagination.KindSong {
		return "🎵"
	}
	return "🎬"
}

// renderPage formats the current page of snap.
func renderPage(snap pagination.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Results for %s\nPage %d/%d · %d found\n\n",
		format.Bold(snap.Query), snap.Page+1, snap.TotalPages(), snap.TotalResults())
	for i, item := range snap.PageSlice() {
		fmt.Fprintf(&b, "%d. %s %s", i+1, kindIcon(item.Kind), format.Escape(format.Truncate(item.Title, itemTitleLen)))
		if item.Artist != "" {
			b.WriteString(" - " + format.Escape(item.Artist))
		}
		if item.Duration != "" {
			b.WriteString(" (" + item.Duration + ")")
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nTap a button to download.")
	return b.String()
}

func renderSummary(sum session.Summary) string {
	var b strings.Builder
	b.WriteString("<b>Your session</b>\n\n")
	fmt.Fprintf(&b, "%s waiting for query\n", format.Check(sum.WaitingForQuery))
	fmt.Fprintf(&b, "%s waiting for link\n", format.Check(sum.WaitingForLink))
	fmt.Fprintf(&b, "%s browsing results\n", format.Check(sum.Browsing))
	if sum.Query != "" {
		fmt.Fprintf(&b, "Query: %s, page %d/%d, %d results\n", format.Bold(sum.Query), sum.Page+1, sum.Pages, sum.Results)
	}
	if sum.Max > 0 {
		fmt.Fprintf(&b, "Requests used: %d/%d in the last hour\n", sum.Used, sum.Max)
	} else {
		fmt.Fprintf(&b, "Requests used: %d in the last hour\n", sum.Used)
	}
	fmt.Fprintf(&b, "Active downloads: %d", sum.ActiveJobs)
	return b.String()
}

func renderStats(s journal.Summary, window time.Duration) string {
	return fmt.Sprintf("<b>Downloads, last %s</b>\n\nTotal: %d\nOK: %d\nFailed: %d\nUsers: %d\nVolume: %s\nAvg time: %s",
		window, s.Total, s.OK, s.Failed, s.Users, format.Size(s.Bytes), time.Duration(s.AvgDuration)*time.Millisecond)
}

func audioCaption(title, artist string) string {
	if artist == "" {
		return "🎵 " + format.Escape(title)
	}
	return "🎵 " + format.Escape(artist) + " - " + format.Escape(title)
}
