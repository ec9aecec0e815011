package helpers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/logger"
	"github.com/m3rciful/tunebot/core/state"
)

func newContext(t *testing.T, msg *tele.Message) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b.NewContext(tele.Update{ID: 7, Message: msg})
}

func TestIdentityOf(t *testing.T) {
	user := &tele.User{ID: 42}
	private := &tele.Chat{ID: 42, Type: tele.ChatPrivate}
	group := &tele.Chat{ID: -100, Type: tele.ChatSuperGroup}

	c := newContext(t, &tele.Message{Sender: user, Chat: private})
	assert.Equal(t, state.Private(42), IdentityOf(c, true))

	c = newContext(t, &tele.Message{Sender: user, Chat: group})
	assert.Equal(t, state.InChat(42, -100, 0), IdentityOf(c, true))

	topicMsg := &tele.Message{Sender: user, Chat: group, ThreadID: 5, TopicMessage: true}
	c = newContext(t, topicMsg)
	assert.Equal(t, state.InChat(42, -100, 5), IdentityOf(c, true))
	assert.Equal(t, state.InChat(42, -100, 0), IdentityOf(c, false), "topics mode off ignores the thread")

	StoreIdentity(c, state.Private(1))
	assert.Equal(t, state.Private(1), IdentityOf(c, true))
}

func TestBuildContextCarriesMeta(t *testing.T) {
	c := newContext(t, &tele.Message{
		Sender:       &tele.User{ID: 3},
		Chat:         &tele.Chat{ID: -9, Type: tele.ChatSuperGroup},
		ThreadID:     11,
		TopicMessage: true,
	})
	ctx := BuildContext(c)
	assert.NotEmpty(t, loggerRID(ctx))
	again := BuildContext(c)
	assert.Equal(t, ctx, again, "context is cached on the update")

	ctx = WithHandler(c, "search")
	assert.Equal(t, ctx, BuildContext(c))
}

type fakeAPI struct {
	sent    []interface{}
	opts    []*tele.SendOptions
	editErr error
	deleted int
}

func (f *fakeAPI) Send(_ tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.sent = append(f.sent, what)
	if len(opts) > 0 {
		if o, ok := opts[0].(*tele.SendOptions); ok {
			f.opts = append(f.opts, o)
		}
	}
	return &tele.Message{ID: len(f.sent)}, nil
}

func (f *fakeAPI) Edit(tele.Editable, interface{}, ...interface{}) (*tele.Message, error) {
	return nil, f.editErr
}

func (f *fakeAPI) Delete(tele.Editable) error {
	f.deleted++
	return nil
}

func TestSenderDirect(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api, nil)
	to := Target{Chat: &tele.Chat{ID: 1}, ThreadID: 4}

	msg, err := s.HTML(context.Background(), to, "<b>hi</b>", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, msg.ID)
	require.Len(t, api.opts, 1)
	assert.Equal(t, 4, api.opts[0].ThreadID)
	assert.Equal(t, tele.ModeHTML, api.opts[0].ParseMode)

	s.Notify(context.Background(), to, "queued", nil)
	assert.Len(t, api.sent, 2)

	s.Delete(context.Background(), msg)
	s.Delete(context.Background(), nil)
	assert.Equal(t, 1, api.deleted)
}

func TestSenderEditNotModified(t *testing.T) {
	api := &fakeAPI{editErr: errors.New("telegram: Bad Request: message is not modified (400)")}
	s := NewSender(api, nil)
	assert.NoError(t, s.Edit(context.Background(), &tele.Message{ID: 1, Chat: &tele.Chat{ID: 1}}, "x", nil))

	api.editErr = errors.New("telegram: Bad Request: message to edit not found (400)")
	assert.Error(t, s.Edit(context.Background(), &tele.Message{ID: 1, Chat: &tele.Chat{ID: 1}}, "x", nil))
}

func loggerRID(ctx context.Context) string {
	return logger.RIDFrom(ctx)
}
