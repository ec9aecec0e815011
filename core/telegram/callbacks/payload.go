package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// MaxDataLen is Telegram's limit on callback_data in bytes.
const MaxDataLen = 64

// PayloadInt parses callback payload as int.
func PayloadInt(c tele.Context) (int, error) {
	return strconv.Atoi(strings.TrimSpace(CallbackPayload(c)))
}

// PayloadString returns the payload trimmed of surrounding spaces.
func PayloadString(c tele.Context) string {
	return strings.TrimSpace(CallbackPayload(c))
}

// FitPayload trims payload so that the encoded \f<unique>|<payload> stays
// within MaxDataLen, cutting on a rune boundary.
func FitPayload(unique, payload string) string {
	budget := MaxDataLen - len(unique) - 2
	if budget <= 0 {
		return ""
	}
	if len(payload) <= budget {
		return payload
	}
	cut := 0
	for i := range payload {
		if i > budget {
			break
		}
		cut = i
	}
	return strings.TrimSpace(payload[:cut])
}
