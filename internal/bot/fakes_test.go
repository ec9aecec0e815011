package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/tunebot/core/config"
	"github.com/m3rciful/tunebot/core/journal"
	"github.com/m3rciful/tunebot/core/media"
	"github.com/m3rciful/tunebot/core/pagination"
	tg "github.com/m3rciful/tunebot/core/telegram"
	tghelpers "github.com/m3rciful/tunebot/core/telegram/helpers"
)

type outMsg struct {
	Text   string
	Markup *tele.ReplyMarkup
	Thread int
}

// fakeAPI records outbound calls made through the Sender.
type fakeAPI struct {
	mu      sync.Mutex
	nextID  int
	sent    []outMsg
	audios  []*tele.Audio
	edits   []outMsg
	deleted []int
}

func (f *fakeAPI) Send(_ tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	var so *tele.SendOptions
	if len(opts) > 0 {
		so, _ = opts[0].(*tele.SendOptions)
	}
	switch v := what.(type) {
	case string:
		m := outMsg{Text: v}
		if so != nil {
			m.Markup, m.Thread = so.ReplyMarkup, so.ThreadID
		}
		f.sent = append(f.sent, m)
	case *tele.Audio:
		f.audios = append(f.audios, v)
	}
	return &tele.Message{ID: 1000 + f.nextID, Chat: &tele.Chat{}}, nil
}

func (f *fakeAPI) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := outMsg{}
	m.Text, _ = what.(string)
	if len(opts) > 0 {
		if so, ok := opts[0].(*tele.SendOptions); ok {
			m.Markup = so.ReplyMarkup
		}
	}
	f.edits = append(f.edits, m)
	return nil, nil
}

func (f *fakeAPI) Delete(msg tele.Editable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := msg.MessageSig()
	n, _ := strconv.Atoi(id)
	f.deleted = append(f.deleted, n)
	return nil
}

func (f *fakeAPI) lastSent() outMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return outMsg{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) lastEdit() outMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return outMsg{}
	}
	return f.edits[len(f.edits)-1]
}

// answers collects answerCallbackQuery texts sent to the fake Bot API.
type answers struct {
	mu    sync.Mutex
	texts []string
}

func (a *answers) last() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.texts) == 0 {
		return ""
	}
	return a.texts[len(a.texts)-1]
}

func newBotAPI(t *testing.T) (*tele.Bot, *answers) {
	t.Helper()
	got := &answers{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/answerCallbackQuery") {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			text, _ := body["text"].(string)
			got.mu.Lock()
			got.texts = append(got.texts, text)
			got.mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	t.Cleanup(srv.Close)

	b, err := tele.NewBot(tele.Settings{
		Token:   "123:test",
		URL:     srv.URL,
		Client:  srv.Client(),
		Offline: true,
	})
	require.NoError(t, err)
	return b, got
}

type searcherFunc func(ctx context.Context, query string) ([]pagination.ResultItem, error)

func (f searcherFunc) Search(ctx context.Context, query string) ([]pagination.ResultItem, error) {
	return f(ctx, query)
}

type downloaderFunc func(ctx context.Context, id string) (*media.Track, error)

func (f downloaderFunc) Download(ctx context.Context, id string) (*media.Track, error) {
	return f(ctx, id)
}

type memJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (j *memJournal) Record(_ context.Context, e journal.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) Summary(context.Context, time.Time) (journal.Summary, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := journal.Summary{Total: len(j.entries)}
	for _, e := range j.entries {
		if e.Outcome == journal.OutcomeOK {
			s.OK++
		} else {
			s.Failed++
		}
		s.Bytes += e.SizeBytes
	}
	return s, nil
}

func (j *memJournal) all() []journal.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journal.Entry(nil), j.entries...)
}

func testItems(n int) []pagination.ResultItem {
	out := make([]pagination.ResultItem, n)
	for i := range out {
		out[i] = pagination.ResultItem{
			Title:      "track " + string(rune('a'+i)),
			Artist:     "artist",
			Duration:   "3:10",
			ExternalID: "vid" + strings.Repeat(string(rune('a'+i)), 8),
			Kind:       pagination.KindSong,
		}
	}
	return out
}

// writeTrack creates fake artefacts the way a real download leaves them.
func writeTrack(t *testing.T, dir, title string) *media.Track {
	t.Helper()
	mp3 := filepath.Join(dir, "audio_test.mp3")
	jpg := filepath.Join(dir, "audio_test.jpg")
	require.NoError(t, os.WriteFile(mp3, []byte("mp3"), 0o644))
	require.NoError(t, os.WriteFile(jpg, []byte("jpg"), 0o644))
	return &media.Track{Path: mp3, ThumbPath: jpg, Title: title, Artist: "artist", Duration: 190 * time.Second, Size: 3}
}

type harness struct {
	app     *App
	bot     *tele.Bot
	api     *fakeAPI
	answers *answers
	journal *memJournal
	cfg     *coreconfig.Config
}

func testConfig(t *testing.T) *coreconfig.Config {
	cfg := &coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "123:test", AdminID: 1}}
	cfg.Session.MaxRequestsPerUser = 10
	cfg.Session.PerPage = 5
	cfg.Downloads.Dir = t.TempDir()
	cfg.Access.GroupMode = true
	require.NoError(t, coreconfig.Normalize(cfg))
	return cfg
}

func newHarness(t *testing.T, cfg *coreconfig.Config, s media.Searcher, d media.Downloader) *harness {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	j := &memJournal{}
	app, err := New(cfg, Deps{Searcher: s, Downloader: d, Journal: j})
	require.NoError(t, err)
	t.Cleanup(func() {
		app.pool.Wait()
		app.coord.Close()
	})

	api := &fakeAPI{}
	app.SetSender(tghelpers.NewSender(api, nil))
	b, ans := newBotAPI(t)
	return &harness{app: app, bot: b, api: api, answers: ans, journal: j, cfg: cfg}
}

var (
	alice   = &tele.User{ID: 42, FirstName: "Alice"}
	bob     = &tele.User{ID: 43, FirstName: "Bob"}
	private = &tele.Chat{ID: 42, Type: tele.ChatPrivate}
	group   = &tele.Chat{ID: -1001, Type: tele.ChatSuperGroup}
)

func (h *harness) message(from *tele.User, chat *tele.Chat, text, payload string) tele.Context {
	return h.bot.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		ID:      10,
		Sender:  from,
		Chat:    chat,
		Text:    text,
		Payload: payload,
	}})
}

func (h *harness) callback(from *tele.User, chat *tele.Chat, msgID int, data string) tele.Context {
	return h.bot.NewContext(tele.Update{ID: 2, Callback: &tele.Callback{
		ID:      "cb",
		Sender:  from,
		Message: &tele.Message{ID: msgID, Chat: chat},
		Data:    data,
	}})
}

func tgRuntime(h *harness) tg.Runtime {
	return tg.Runtime{Bot: h.bot, Sender: tghelpers.NewSender(h.api, nil), Registry: h.app.reg}
}
