package helpers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/logger"
	"github.com/m3rciful/tunebot/core/telegram/sender"
)

// API is the subset of *tele.Bot used for outbound calls.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Target addresses a chat and, inside forums, a topic.
type Target struct {
	Chat     *tele.Chat
	ThreadID int
}

// TargetOf answers into the chat and topic the update came from.
func TargetOf(c tele.Context) Target {
	t := Target{Chat: c.Chat()}
	if msg := c.Message(); msg != nil && msg.TopicMessage {
		t.ThreadID = msg.ThreadID
	}
	return t
}

func (t Target) options(rm *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		ReplyMarkup:           rm,
		ThreadID:              t.ThreadID,
		DisableWebPagePreview: true,
	}
}

// Sender routes outbound calls through the dispatcher. Calls whose result
// the caller needs run synchronously with retries; fire-and-forget calls are
// queued and fall back to a direct call when the queue is unavailable.
type Sender struct {
	api  API
	disp *sender.Dispatcher
}

// NewSender wires api to disp. A nil disp sends directly.
func NewSender(api API, disp *sender.Dispatcher) *Sender {
	return &Sender{api: api, disp: disp}
}

func (s *Sender) do(ctx context.Context, action string, fn func() error) error {
	if s.disp == nil {
		return fn()
	}
	return s.disp.Do(ctx, action, fn)
}

func (s *Sender) enqueue(ctx context.Context, action, endpoint string, run func() error) {
	if s.disp != nil {
		err := s.disp.Enqueue(ctx, action, endpoint, run)
		if err == nil {
			return
		}
		if !errors.Is(err, sender.ErrQueueFull) && !errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.reject",
				slog.String("op", action),
				slog.String("err", err.Error()),
			)
			return
		}
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("op", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
	}
	if err := run(); err != nil {
		logger.Warn(ctx, "tg.sender", "send",
			slog.String("op", action),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

// HTML sends an HTML message and returns it.
func (s *Sender) HTML(ctx context.Context, to Target, text string, rm *tele.ReplyMarkup) (*tele.Message, error) {
	var msg *tele.Message
	err := s.do(ctx, "send.html", func() error {
		m, err := s.api.Send(to.Chat, text, to.options(rm))
		if err == nil {
			msg = m
		}
		return err
	})
	return msg, err
}

// Notify queues an HTML message without waiting for it.
func (s *Sender) Notify(ctx context.Context, to Target, text string, rm *tele.ReplyMarkup) {
	s.enqueue(ctx, "send.notify", "sendMessage", func() error {
		_, err := s.api.Send(to.Chat, text, to.options(rm))
		return err
	})
}

// Edit replaces the text and markup of msg. An unchanged message is not an error.
func (s *Sender) Edit(ctx context.Context, msg tele.Editable, text string, rm *tele.ReplyMarkup) error {
	err := s.do(ctx, "edit.html", func() error {
		_, err := s.api.Edit(msg, text, &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			ReplyMarkup:           rm,
			DisableWebPagePreview: true,
		})
		if IsNotModified(err) {
			return nil
		}
		return err
	})
	return err
}

// Delete queues removal of msg.
func (s *Sender) Delete(ctx context.Context, msg tele.Editable) {
	if msg == nil {
		return
	}
	s.enqueue(ctx, "delete", "deleteMessage", func() error {
		return s.api.Delete(msg)
	})
}

// Audio uploads a, captioned in HTML.
func (s *Sender) Audio(ctx context.Context, to Target, a *tele.Audio) (*tele.Message, error) {
	var msg *tele.Message
	err := s.do(ctx, "send.audio", func() error {
		m, err := s.api.Send(to.Chat, a, to.options(nil))
		if err == nil {
			msg = m
		}
		return err
	})
	return msg, err
}

// IsNotModified reports Telegram's refusal to apply an identical edit.
func IsNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
