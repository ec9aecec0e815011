// Package format renders text for Telegram's HTML parse mode.
package format

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"
)

// Escape quotes the characters Telegram's HTML parser treats as markup.
func Escape(s string) string {
	return html.EscapeString(s)
}

// Truncate cuts s to at most max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max == 1 {
		return "…"
	}
	return strings.TrimRight(string(runes[:max-1]), " ") + "…"
}

// Bold wraps escaped s in <b>.
func Bold(s string) string {
	return "<b>" + Escape(s) + "</b>"
}

// Code wraps escaped s in <code>.
func Code(s string) string {
	return "<code>" + Escape(s) + "</code>"
}

// Size renders a byte count with a binary unit, e.g. "4.2 MB".
func Size(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Check renders a boolean as a status mark.
func Check(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}
