package callbacks

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	u, p := ParseCallbackData(&tele.Callback{Data: "\fsearch_query|daft punk music"})
	assert.Equal(t, "search_query", u)
	assert.Equal(t, "daft punk music", p)

	u, p = ParseCallbackData(&tele.Callback{Data: "search_next"})
	assert.Equal(t, "search_next", u)
	assert.Empty(t, p)

	u, p = ParseCallbackData(nil)
	assert.Empty(t, u)
	assert.Empty(t, p)
}

func TestPayloadAfterMatch(t *testing.T) {
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	c := b.NewContext(tele.Update{Callback: &tele.Callback{Unique: "download", Data: " dQw4w9WgXcQ "}})
	assert.Equal(t, "download", CallbackKey(c))
	assert.Equal(t, "dQw4w9WgXcQ", PayloadString(c))

	c = b.NewContext(tele.Update{Callback: &tele.Callback{Data: "\fpage|3"}})
	n, err := PayloadInt(c)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestFitPayload(t *testing.T) {
	assert.Equal(t, "short", FitPayload("search_query", "short"))

	long := "очень длинный поисковый запрос про музыку и песни"
	got := FitPayload("search_query", long)
	assert.LessOrEqual(t, len("\fsearch_query|"+got), MaxDataLen)
	assert.True(t, utf8.ValidString(got))
	assert.NotEmpty(t, got)
}
