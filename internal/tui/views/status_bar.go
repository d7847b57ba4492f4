package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/talentpipe/inboxsync/internal/api"
	"github.com/talentpipe/inboxsync/internal/tui/ui"
)

// StatusBar shows profile, channel state, selection and the flash notice.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	profile string
	status  api.StatusInfo
	hints   []string
	flash   string
}

// NewStatusBar creates the status bar.
func NewStatusBar(theme *ui.Theme, profile string) *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BarBgColor)
	sb := &StatusBar{TextView: tv, theme: theme, profile: profile}
	sb.render()
	return sb
}

// SetStatus updates the connection and selection part.
func (sb *StatusBar) SetStatus(st api.StatusInfo) {
	sb.status = st
	sb.render()
}

// SetHints shows the current page's key hints.
func (sb *StatusBar) SetHints(h []string) {
	sb.hints = h
	sb.render()
}

// SetFlash sets a transient notice; "" clears it.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	conn := ui.Tag(sb.theme.OfflineColor) + "○ offline[-]"
	if sb.status.Connected {
		conn = ui.Tag(sb.theme.OnlineColor) + "● online[-]"
	}
	line := fmt.Sprintf(" [::b]%s[::-] | %s", tview.Escape(sb.profile), conn)
	if sb.status.Phone != "" {
		line += " | " + sb.status.Phone
	}
	if sb.status.Pending > 0 {
		line += fmt.Sprintf(" | %d sending", sb.status.Pending)
	}
	line += " | " + time.Now().Format("15:04")
	if sb.flash != "" {
		line += " | " + ui.Tag(sb.theme.FlashColor) + tview.Escape(sb.flash) + "[-]"
	} else if len(sb.hints) > 0 {
		line += " | [::d]" + tview.Escape(strings.Join(sb.hints, "  ")) + "[::-]"
	}
	_, _ = fmt.Fprint(sb, line)
}
