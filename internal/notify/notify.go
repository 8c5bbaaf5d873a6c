// Package notify sends operator alerts: failed cycles and the daily summary.
package notify

import (
	"context"
	"fmt"
	"html"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/cycle"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
)

// Summary is the end-of-day report.
type Summary struct {
	Date          time.Time
	Actions       map[string]int // per handler, successful actions
	Queues        map[string]schedule.QueueStat
	TrackedTweets int
}

// Notifier is implemented by Telegram and Nop.
type Notifier interface {
	cycle.Notifier
	DailySummary(ctx context.Context, s Summary) error
	Send(ctx context.Context, text string) error
}

// Nop drops every notification.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) CycleFailed(context.Context, string, error) {}

func (Nop) DailySummary(context.Context, Summary) error { return nil }

func (Nop) Send(context.Context, string) error { return nil }

func formatFailure(handle, name string, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ <b>%s</b>: cycle <code>%s</code> failed\n", html.EscapeString(handle), html.EscapeString(name))
	if err != nil {
		fmt.Fprintf(&b, "<pre>%s</pre>", html.EscapeString(truncate(err.Error(), 1000)))
	}
	return b.String()
}

func formatSummary(handle string, s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>%s</b> daily summary, %s\n\n", html.EscapeString(handle), s.Date.UTC().Format("2006-01-02"))

	b.WriteString("<b>Actions</b>\n")
	if len(s.Actions) == 0 {
		b.WriteString("none\n")
	}
	for _, name := range slices.Sorted(maps.Keys(s.Actions)) {
		fmt.Fprintf(&b, "%s: %d\n", html.EscapeString(name), s.Actions[name])
	}

	b.WriteString("\n<b>Queues</b> (pending/completed)\n")
	for _, name := range slices.Sorted(maps.Keys(s.Queues)) {
		st := s.Queues[name]
		fmt.Fprintf(&b, "%s: %d/%d\n", html.EscapeString(name), st.Pending, st.Completed)
	}
	fmt.Fprintf(&b, "\nTracked tweets: %d", s.TrackedTweets)
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
