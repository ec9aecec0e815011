package bot

import (
	"regexp"
	"strings"
)

// youtubeLinkRe matches watch, short, shorts, embed and music links and
// captures the 11-character video id.
var youtubeLinkRe = regexp.MustCompile(
	`(?i)(?:https?://)?(?:www\.|m\.|music\.)?(?:youtube\.com/(?:watch\?(?:[^\s#]*&)?v=|shorts/|embed/|live/)|youtu\.be/)([A-Za-z0-9_-]{11})`,
)

// ExtractVideoID returns the id of the first YouTube link in text.
func ExtractVideoID(text string) (string, bool) {
	m := youtubeLinkRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// suggestions offers alternative queries after an empty search.
func suggestions(query string) []string {
	q := strings.TrimSpace(query)
	lower := strings.ToLower(q)
	var out []string
	if !strings.Contains(lower, "music") {
		out = append(out, q+" music")
	}
	if !strings.Contains(lower, "song") {
		out = append(out, q+" song")
	}
	if words := strings.Fields(q); len(words) > 2 {
		out = append(out, strings.Join(words[:2], " "))
	}
	return out
}
