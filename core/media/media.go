// Package media talks to yt-dlp for searching and downloading audio, and
// owns the temporary files that downloads leave in the downloads directory.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m3rciful/tunebot/core/pagination"
)

const (
	// MaxFileSize is the Telegram bot upload ceiling.
	MaxFileSize = 50 << 20
	// DefaultMaxDuration excludes long mixes and streams from search.
	DefaultMaxDuration = 15 * time.Minute
	// DefaultSearchLimit caps flat search results.
	DefaultSearchLimit = 50
)

var (
	// ErrTooLarge is returned when the converted file exceeds the upload limit.
	ErrTooLarge = errors.New("media: file too large")
	// ErrNoAudio is returned when yt-dlp finished without producing an mp3.
	ErrNoAudio = errors.New("media: no audio produced")
)

// Track is a downloaded audio file ready to be sent.
type Track struct {
	Path      string
	ThumbPath string
	Title     string
	Artist    string
	Duration  time.Duration
	Size      int64
}

// Files lists every artefact of the track that has to be removed afterwards.
func (t *Track) Files() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, 2)
	if t.Path != "" {
		out = append(out, t.Path)
	}
	if t.ThumbPath != "" {
		out = append(out, t.ThumbPath)
	}
	return out
}

// Searcher finds tracks for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]pagination.ResultItem, error)
}

// Downloader fetches a video's audio as mp3.
type Downloader interface {
	Download(ctx context.Context, resourceID string) (*Track, error)
}

// FormatDuration renders m:ss, or h:mm:ss for an hour and above.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// WatchURL returns the canonical watch URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
