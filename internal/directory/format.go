package directory

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/andertben/skillspot-chat/internal/models"
)

// RelativeTime renders ts relative to now, e.g. "3 minutes ago". A zero
// timestamp renders as "".
func RelativeTime(ts, now time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return humanize.RelTime(ts, now, "ago", "from now")
}

// Preview returns the last message text cut to max runes, or a placeholder
// for threads without messages.
func Preview(row models.ThreadSummary, max int) string {
	text := strings.Join(strings.Fields(row.LastMessageText), " ")
	if text == "" {
		return "Noch keine Nachrichten"
	}
	runes := []rune(text)
	if max > 1 && len(runes) > max {
		return string(runes[:max-1]) + "…"
	}
	return text
}
