package media

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tunebot/core/pagination"
)

const searchOutput = `{"id":"a1","title":"Numb (Official Video)","duration":187,"channel":"Linkin Park"}
{"id":"b2","title":"Numb","duration":185.4,"channel":"Linkin Park - Topic"}
{"id":"c3","title":"10 hour mix","duration":36000,"channel":"Mixes"}
WARNING: noise
{"id":"","title":"broken"}
`

func TestParseSearchOutput(t *testing.T) {
	items, err := parseSearchOutput(searchOutput, 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, pagination.ResultItem{
		Title: "Numb", Artist: "Linkin Park", Duration: "3:07", ExternalID: "a1", Kind: pagination.KindVideo,
	}, items[0])
	assert.Equal(t, pagination.KindSong, items[1].Kind)
	assert.Equal(t, "Linkin Park", items[1].Artist)
	assert.Equal(t, "3:05", items[1].Duration)
}

func TestParseSearchOutputBadJSON(t *testing.T) {
	_, err := parseSearchOutput("{not json\n", 0)
	assert.Error(t, err)
}

func TestCollectTrack(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "audio_abcd1234")
	require.NoError(t, os.WriteFile(base+".mp3", make([]byte, 1024), 0o644))
	require.NoError(t, os.WriteFile(base+".jpg", []byte("img"), 0o644))

	y := NewYTDLP(YTDLPOptions{Dir: dir})
	tr, err := y.collect(base, `{"id":"x","title":"Daft Punk - Around the World","uploader":"","duration":240}`)
	require.NoError(t, err)
	assert.Equal(t, base+".mp3", tr.Path)
	assert.Equal(t, base+".jpg", tr.ThumbPath)
	assert.Equal(t, int64(1024), tr.Size)
	assert.Equal(t, "Around the World", tr.Title)
	assert.Equal(t, "Daft Punk", tr.Artist)
	assert.Equal(t, 4*time.Minute, tr.Duration)
}

func TestCollectWithoutAudio(t *testing.T) {
	y := NewYTDLP(YTDLPOptions{Dir: t.TempDir()})
	_, err := y.collect(filepath.Join(y.Dir(), "audio_missing"), "")
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestDownloadCmdArgs(t *testing.T) {
	y := NewYTDLP(YTDLPOptions{Dir: t.TempDir(), MaxFileSize: 10 << 20, MaxDuration: 10 * time.Minute})
	base := filepath.Join(y.Dir(), "audio_0000")
	args := y.downloadCmd(base).BuildCommand(context.Background(), WatchURL("abcdefghijk")).Args

	i := slices.Index(args, "--max-filesize")
	require.GreaterOrEqual(t, i, 0, "args: %v", args)
	assert.Equal(t, "8388608", args[i+1])

	i = slices.Index(args, "--match-filters")
	require.GreaterOrEqual(t, i, 0, "args: %v", args)
	assert.Equal(t, "duration <= 600", args[i+1])

	assert.Contains(t, args, base+".%(ext)s")
	assert.Equal(t, WatchURL("abcdefghijk"), args[len(args)-1])
}

func TestVersionWithoutBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	_, err := Version(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yt-dlp version")
}
