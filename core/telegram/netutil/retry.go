// Package netutil holds retry classification shared by the Telegram HTTP
// transport and the outbound sender.
package netutil

import (
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"

	tele "gopkg.in/telebot.v4"
)

// ShouldRetry reports whether err is a transient failure worth repeating:
// dial and timeout errors, dropped connections and Bot API 5xx responses.
// Flood waits are handled by callers since they carry their own delay.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() || opErr.Op == "dial" {
			return true
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
			return ShouldRetry(urlErr.Err)
		}
	}

	return false
}
