package middleware

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/logger"
	tghelpers "github.com/m3rciful/tunebot/core/telegram/helpers"
)

// seenUpdates keeps a short-lived set of processed update IDs to avoid double logging.
type seenUpdates struct {
	mu      sync.Mutex
	ids     map[int]time.Time
	keepFor time.Duration
}

func (s *seenUpdates) seen(updateID int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ts := range s.ids {
		if now.Sub(ts) > s.keepFor {
			delete(s.ids, id)
		}
	}
	if _, ok := s.ids[updateID]; ok {
		return true
	}
	s.ids[updateID] = now
	return false
}

// Logger sets rid and the request context, then logs one receipt line per
// update. Receipts are deduplicated by update_id since the middleware may
// wrap several handler groups.
func Logger() tele.MiddlewareFunc {
	seen := &seenUpdates{ids: make(map[int]time.Time), keepFor: 10 * time.Second}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			upd := c.Update()
			user := c.Sender()
			chat := c.Chat()

			var chatID, userID int64
			if chat != nil {
				chatID = chat.ID
			}
			if user != nil {
				userID = user.ID
			}
			rid := logger.BuildRID(upd.ID, chatID, userID)
			c.Set("rid", rid)
			c.Set("update_start", time.Now())
			ctx := tghelpers.BuildContext(c)

			if !logger.ShouldSampleDebug() || seen.seen(upd.ID, time.Now()) {
				return next(c)
			}

			attrs := []slog.Attr{slog.String("status", "ok")}
			if chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user != nil {
				if user.Username != "" {
					attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
				}
				if user.LanguageCode != "" {
					attrs = append(attrs, slog.String("lang", user.LanguageCode))
				}
			}
			switch {
			case upd.Callback != nil:
				key, payload := parseCallback(upd.Callback)
				if key != "" {
					attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
				}
				if payload != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
				}
			case upd.Message != nil:
				if t := c.Text(); t != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
				}
			case upd.MyChatMember != nil && upd.MyChatMember.NewChatMember != nil:
				attrs = append(attrs, slog.String("member_status", string(upd.MyChatMember.NewChatMember.Role)))
			}
			logger.Debug(ctx, "tg", "update.received", attrs...)
			return next(c)
		}
	}
}

func parseCallback(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	key, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(key), payload
}
