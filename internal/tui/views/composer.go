package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/talentpipe/inboxsync/internal/tui/ui"
)

// Composer is the one-line input under the thread.
type Composer struct {
	*tview.InputField
	onSend func(text string)
	onDone func()
}

// NewComposer creates the composer.
func NewComposer(theme *ui.Theme) *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetLabelColor(theme.MenuKeyColor).
		SetFieldWidth(0).
		SetPlaceholder("type a message, Enter to send, Esc to leave")
	input.SetFieldBackgroundColor(theme.BgColor)

	c := &Composer{InputField: input}
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := strings.TrimSpace(c.GetText())
			if text != "" && c.onSend != nil {
				c.onSend(text)
				c.SetText("")
			}
		case tcell.KeyEscape:
			if c.onDone != nil {
				c.onDone()
			}
		}
	})
	return c
}

// SetOnSend sets the callback for Enter on a non-blank line.
func (c *Composer) SetOnSend(fn func(text string)) { c.onSend = fn }

// SetOnDone sets the callback for Esc.
func (c *Composer) SetOnDone(fn func()) { c.onDone = fn }

// SetEnabled greys the composer out while sending is impossible.
func (c *Composer) SetEnabled(ok bool) {
	c.SetDisabled(!ok)
	if ok {
		c.SetPlaceholder("type a message, Enter to send, Esc to leave")
	} else {
		c.SetPlaceholder("offline: waiting for the push channel")
	}
}
