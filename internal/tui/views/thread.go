package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	domain "github.com/talentpipe/inboxsync/internal/model"
	"github.com/talentpipe/inboxsync/internal/tui/ui"
)

// Thread shows the open conversation, oldest message first.
type Thread struct {
	*tview.TextView
	theme *ui.Theme
}

// NewThread creates the thread view.
func NewThread(theme *ui.Theme) *Thread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	theme.Frame(tv.Box, "Messages")
	return &Thread{TextView: tv, theme: theme}
}

// SetName updates the title.
func (t *Thread) SetName(name string) {
	t.SetTitle(" " + tview.Escape(name) + " ")
}

// Update redraws the thread and scrolls to the newest message.
func (t *Thread) Update(msgs []domain.Message) {
	t.Clear()
	if len(msgs) == 0 {
		_, _ = fmt.Fprint(t, "\n  [::d]No messages yet.[::-]")
		return
	}
	var b strings.Builder
	for _, m := range msgs {
		who := "Them"
		align := ""
		if m.Direction == domain.Outbound {
			who = "You"
			align = "  "
		}
		fmt.Fprintf(&b, "%s[::b]%s[::-] [::d]%s[::-] %s\n", align, who, stamp(m.SentAt), t.tick(m.Status))
		for _, line := range strings.Split(clean(m.Body), "\n") {
			b.WriteString(align + line + "\n")
		}
		b.WriteString("\n")
	}
	_, _ = fmt.Fprint(t, b.String())
	t.ScrollToEnd()
}

// tick renders a delivery status the way phone clients do.
func (t *Thread) tick(s domain.MessageStatus) string {
	switch s {
	case domain.StatusSending:
		return "[::d]…[::-]"
	case domain.StatusSent:
		return "✓"
	case domain.StatusDelivered:
		return "✓✓"
	case domain.StatusRead:
		return ui.Tag(t.theme.OnlineColor) + "✓✓[-]"
	case domain.StatusError:
		return ui.Tag(t.theme.ErrorColor) + "✗ failed (r to resend)[-]"
	}
	return ""
}
