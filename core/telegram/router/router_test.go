package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/tunebot/core/telegram"
	"github.com/m3rciful/tunebot/core/telegram/callbacks"
	"github.com/m3rciful/tunebot/core/telegram/commands"
)

type codedErr struct{}

func (codedErr) Error() string { return "quota" }
func (codedErr) Code() string  { return "quota exceeded" }

type plainErr struct{}

func (*plainErr) Error() string { return "x" }

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "QUOTA_EXCEEDED", deriveErrorCode(codedErr{}))
	assert.Equal(t, "PLAINERR", deriveErrorCode(&plainErr{}))
	assert.Equal(t, "ERRORSTRING", deriveErrorCode(errors.New("x")))
	assert.Empty(t, deriveErrorCode(nil))
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "search", normalizeHandlerName("/Search"))
	assert.Equal(t, "unknown", normalizeHandlerName(" "))
	assert.Equal(t, "a_b", normalizeHandlerName("a b"))
}

func TestFirstWord(t *testing.T) {
	assert.Equal(t, "/search", firstWord("/search daft punk"))
	assert.Equal(t, "/help", firstWord("/help@tunebot"))
	assert.Equal(t, "hello", firstWord("hello"))
}

type convFunc func(tele.Context) (string, tele.HandlerFunc)

func (f convFunc) Dispatch(c tele.Context) (string, tele.HandlerFunc) { return f(c) }

func textContext(t *testing.T, text string) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b.NewContext(tele.Update{Message: &tele.Message{
		Text:   text,
		Sender: &tele.User{ID: 1},
		Chat:   &tele.Chat{ID: 1, Type: tele.ChatPrivate},
	}})
}

func TestTextRoutesOrder(t *testing.T) {
	reg := tg.NewRegistry()
	var got []string
	reg.RegisterCommand("/help", commands.Command{
		Description: "help",
		Handler:     func(tele.Context) error { got = append(got, "help"); return nil },
	})
	reg.SetTextFallback(func(tele.Context) error { got = append(got, "fallback"); return nil })

	conv := convFunc(func(c tele.Context) (string, tele.HandlerFunc) {
		if c.Text() == "query" {
			return "search", func(tele.Context) error { got = append(got, "search"); return nil }
		}
		return "", nil
	})
	routes := TextRoutes(conv, reg, TextOptions{})
	require.Len(t, routes, 1)
	h := routes[0].Handler

	require.NoError(t, h(textContext(t, "query")))
	require.NoError(t, h(textContext(t, "/help@tunebot")))
	require.NoError(t, h(textContext(t, "help")))
	assert.Equal(t, []string{"search", "help", "fallback"}, got)
}

func TestCallbackRouteDispatchesByKey(t *testing.T) {
	reg := tg.NewRegistry()
	var payload string
	require.NoError(t, reg.RegisterCallback("download", func(c tele.Context) error {
		payload = callbacks.CallbackPayload(c)
		c.Set("cb_answered", true)
		return nil
	}))
	route := CallbackRoute(reg, CallbackOptions{})

	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	c := b.NewContext(tele.Update{Callback: &tele.Callback{
		Data:   "\fdownload|abc123",
		Sender: &tele.User{ID: 1},
	}})
	require.NoError(t, route.Handler(c))
	assert.Equal(t, "abc123", payload)
}
