package media

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lrstanley/go-ytdlp"

	"github.com/m3rciful/tunebot/core/logger"
	"github.com/m3rciful/tunebot/core/pagination"
)

const component = "media"

// YTDLPOptions configures the yt-dlp collaborator.
type YTDLPOptions struct {
	Dir          string
	SearchLimit  int
	MaxDuration  time.Duration
	MaxFileSize  int64
	AudioQuality string
}

// YTDLP implements Searcher and Downloader on top of the yt-dlp binary.
type YTDLP struct {
	opts YTDLPOptions
}

// NewYTDLP returns a YTDLP with defaults applied.
func NewYTDLP(opts YTDLPOptions) *YTDLP {
	if opts.Dir == "" {
		opts.Dir = "downloads"
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = MaxFileSize
	}
	if opts.AudioQuality == "" {
		opts.AudioQuality = "128K"
	}
	return &YTDLP{opts: opts}
}

// Dir returns the downloads directory.
func (y *YTDLP) Dir() string { return y.opts.Dir }

type flatEntry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Channel  string  `json:"channel"`
	Uploader string  `json:"uploader"`
	Artist   string  `json:"artist"`
	Track    string  `json:"track"`
}

// Search runs a flat ytsearch and keeps entries within the duration limit.
func (y *YTDLP) Search(ctx context.Context, query string) ([]pagination.ResultItem, error) {
	start := time.Now()
	res, err := ytdlp.New().
		FlatPlaylist().
		DumpJSON().
		NoWarnings().
		Run(ctx, fmt.Sprintf("ytsearch%d:%s", y.opts.SearchLimit, query))
	if err != nil {
		return nil, fmt.Errorf("media: search %q: %w", query, err)
	}
	items, err := parseSearchOutput(res.Stdout, y.opts.MaxDuration)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, component, "search",
		slog.Int("count", len(items)),
		slog.Duration("duration_ms", logger.Took(start)),
	)
	return items, nil
}

func parseSearchOutput(out string, maxDuration time.Duration) ([]pagination.ResultItem, error) {
	var items []pagination.ResultItem
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] != '{' {
			continue
		}
		var e flatEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("media: decode search entry: %w", err)
		}
		if e.ID == "" {
			continue
		}
		d := time.Duration(e.Duration * float64(time.Second))
		if maxDuration > 0 && d > maxDuration {
			continue
		}
		items = append(items, entryToItem(e, d))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("media: read search output: %w", err)
	}
	return items, nil
}

func entryToItem(e flatEntry, d time.Duration) pagination.ResultItem {
	kind := pagination.KindVideo
	channel := firstNonEmpty(e.Channel, e.Uploader)
	// Auto-generated "Artist - Topic" channels carry album tracks.
	if strings.HasSuffix(channel, " - Topic") {
		kind = pagination.KindSong
		channel = strings.TrimSuffix(channel, " - Topic")
	}
	title := firstNonEmpty(e.Track, e.Title)
	artist := firstNonEmpty(e.Artist, channel)
	if kind == pagination.KindVideo {
		title, artist = CleanMetadata(title, "")
		if artist == UnknownArtist && channel != "" {
			artist = channel
		}
	}
	return pagination.ResultItem{
		Title:      title,
		Artist:     artist,
		Duration:   FormatDuration(d),
		ExternalID: e.ID,
		Kind:       kind,
	}
}

type downloadInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Track    string  `json:"track"`
	Artist   string  `json:"artist"`
	Uploader string  `json:"uploader"`
	Duration float64 `json:"duration"`
}

// Download fetches bestaudio, converts it to mp3 and writes a jpg thumbnail
// next to it. The caller owns the returned files.
func (y *YTDLP) Download(ctx context.Context, resourceID string) (*Track, error) {
	if err := os.MkdirAll(y.opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: downloads dir: %w", err)
	}
	base := filepath.Join(y.opts.Dir, "audio_"+uuid.NewString()[:8])

	res, err := y.downloadCmd(base).Run(ctx, WatchURL(resourceID))
	if err != nil {
		cleanupGlob(base)
		return nil, fmt.Errorf("media: download %s: %w", resourceID, err)
	}

	track, err := y.collect(base, res.Stdout)
	if err != nil {
		cleanupGlob(base)
		return nil, err
	}
	if track.Size > y.opts.MaxFileSize {
		cleanupGlob(base)
		return nil, fmt.Errorf("media: %s is %d bytes: %w", resourceID, track.Size, ErrTooLarge)
	}
	return track, nil
}

// downloadCmd leaves 2 MiB of headroom under the upload cap for the
// thumbnail and tags added after the size check.
func (y *YTDLP) downloadCmd(base string) *ytdlp.Command {
	return ytdlp.New().
		Format("bestaudio[ext=m4a]/bestaudio/best").
		ExtractAudio().
		AudioFormat("mp3").
		AudioQuality(y.opts.AudioQuality).
		EmbedMetadata().
		WriteThumbnail().
		ConvertThumbnails("jpg").
		NoPlaylist().
		MaxFileSize(strconv.FormatInt(y.opts.MaxFileSize-2<<20, 10)).
		MatchFilters(fmt.Sprintf("duration <= %d", int(y.opts.MaxDuration.Seconds()))).
		Output(base+".%(ext)s").
		PrintJSON().
		NoWarnings()
}

func (y *YTDLP) collect(base, stdout string) (*Track, error) {
	audio := base + ".mp3"
	st, err := os.Stat(audio)
	if err != nil {
		return nil, fmt.Errorf("media: %s: %w", filepath.Base(audio), ErrNoAudio)
	}
	track := &Track{Path: audio, Size: st.Size()}
	if _, err := os.Stat(base + ".jpg"); err == nil {
		track.ThumbPath = base + ".jpg"
	}

	info := parseDownloadInfo(stdout)
	title := firstNonEmpty(info.Track, info.Title)
	artist := firstNonEmpty(info.Artist, info.Uploader)
	track.Title, track.Artist = CleanMetadata(title, artist)
	track.Duration = time.Duration(info.Duration * float64(time.Second))
	return track, nil
}

func parseDownloadInfo(stdout string) downloadInfo {
	var info downloadInfo
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if err := json.Unmarshal([]byte(line), &info); err == nil && info.ID != "" {
			break
		}
	}
	return info
}

func cleanupGlob(base string) {
	matches, _ := filepath.Glob(base + ".*")
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

// Version reports the yt-dlp binary version, used by diagnostics.
func Version(ctx context.Context) (string, error) {
	res, err := ytdlp.New().Version(ctx)
	if err != nil {
		return "", fmt.Errorf("media: yt-dlp version: %w", err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
