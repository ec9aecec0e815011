package media

import (
	"regexp"
	"strings"
)

// UnknownArtist is what yt-dlp metadata falls back to.
const UnknownArtist = "Unknown Artist"

var titleSeparators = []string{" - ", " – ", " — ", " • ", " | ", " : ", " _ "}

var creditPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bby\s+([^()\[\]|]+?)\s*(?:\(|\[|\||$)`),
	regexp.MustCompile(`(?i)\bfeat(?:\.|\s)\s*([^()\[\]|]+?)\s*(?:\(|\[|\||$)`),
	regexp.MustCompile(`(?i)\bft(?:\.|\s)\s*([^()\[\]|]+?)\s*(?:\(|\[|\||$)`),
}

// Trailing " | Channel" or " • Channel". A hyphen suffix is left alone since
// it usually belongs to the title (remix names, versions).
var channelSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`\s+\|\s+[^|()\[\]]+$`),
	regexp.MustCompile(`\s+•\s+[^•()\[\]]+$`),
}

var videoTags = regexp.MustCompile(`(?i)\s*[(\[](?:` +
	`official\s+(?:music\s+|lyric\s+)?video(?:\s+hd)?|official\s+audio|audio|hq\s+audio|` +
	`lyric\s+video|lyrics|video\s*clip|clip\s+officiel|videoclip|` +
	`hd|hq|4k|full\s+hd|ultra\s+hd|high\s+quality|extended(?:\s+version)?|\d+k?` +
	`)[)\]]`)

var channelBrackets = regexp.MustCompile(`(?i)\s*[(\[][^()\[\]]*(?:channel|vevo|official|music|audio)[^()\[\]]*[)\]]`)

// CleanMetadata derives a display artist and title from a video title. The
// artist is only inferred when it is empty or unknown.
func CleanMetadata(title, artist string) (string, string) {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)

	if title != "" && (artist == "" || artist == UnknownArtist) {
		for _, sep := range titleSeparators {
			left, right, ok := strings.Cut(title, sep)
			left, right = strings.TrimSpace(left), strings.TrimSpace(right)
			if ok && left != "" && right != "" {
				artist, title = left, right
				break
			}
		}
	}

	if title != "" && (artist == "" || artist == UnknownArtist) {
		for _, re := range creditPatterns {
			m := re.FindStringSubmatchIndex(title)
			if m == nil {
				continue
			}
			name := strings.TrimSpace(title[m[2]:m[3]])
			if name == "" {
				continue
			}
			artist = name
			title = strings.TrimSpace(title[:m[0]] + " " + title[m[3]:])
			break
		}
	}

	for _, re := range channelSuffixes {
		title = strings.TrimSpace(re.ReplaceAllString(title, ""))
	}
	title = strings.TrimSpace(videoTags.ReplaceAllString(title, ""))
	title = strings.TrimSpace(channelBrackets.ReplaceAllString(title, ""))
	title = strings.Join(strings.Fields(title), " ")

	if artist == "" {
		artist = UnknownArtist
	}
	return title, artist
}
