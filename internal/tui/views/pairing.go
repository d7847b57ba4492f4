package views

import (
	"errors"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/talentpipe/inboxsync/internal/api"
	domain "github.com/talentpipe/inboxsync/internal/model"
	"github.com/talentpipe/inboxsync/internal/qr"
	"github.com/talentpipe/inboxsync/internal/tui/ui"
)

// Pairing lists sessions on the left and the selected session's pairing
// code on the right.
type Pairing struct {
	*tview.Flex
	theme    *ui.Theme
	sessions *tview.Table
	code     *tview.TextView
	items    []api.SessionInfo
}

// NewPairing creates the pairing page.
func NewPairing(theme *ui.Theme) *Pairing {
	sessions := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	sessions.SetSelectedStyle(tcell.StyleDefault.Foreground(theme.TableCursorFg).Background(theme.TableCursorBg))
	theme.Frame(sessions.Box, "Sessions")

	code := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	theme.Frame(code.Box, "Pairing")

	flex := tview.NewFlex().
		AddItem(sessions, 0, 1, true).
		AddItem(code, 0, 2, false)

	return &Pairing{Flex: flex, theme: theme, sessions: sessions, code: code}
}

// Table is the focusable session list.
func (p *Pairing) Table() *tview.Table { return p.sessions }

// SetSelectionChangedFunc is called when the cursor moves between sessions.
func (p *Pairing) SetSelectionChangedFunc(fn func(api.SessionInfo)) {
	p.sessions.SetSelectionChangedFunc(func(row, _ int) {
		if s, ok := p.at(row); ok {
			fn(s)
		}
	})
}

// Update redraws the session rows and the code pane for the cursor row.
func (p *Pairing) Update(items []api.SessionInfo) {
	keep, _ := p.Selected()
	p.items = items
	p.sessions.Clear()
	for col, h := range []string{" NAME", " PHONE", " STATUS"} {
		p.sessions.SetCell(0, col, tview.NewTableCell(h).SetSelectable(false).SetTextColor(p.theme.TableHeaderFg))
	}
	cursor := 1
	for i, s := range items {
		row := i + 1
		status := string(s.Status)
		switch {
		case s.Status == domain.SessionConnected:
			status = ui.Tag(p.theme.OnlineColor) + status + "[-]"
		case s.Polling:
			status += " …"
		}
		p.sessions.SetCell(row, 0, tview.NewTableCell(" "+clean(s.Name)).SetExpansion(1))
		p.sessions.SetCell(row, 1, tview.NewTableCell(" "+s.Phone))
		p.sessions.SetCell(row, 2, tview.NewTableCell(" "+status))
		if s.ID == keep.ID {
			cursor = row
		}
	}
	if len(items) == 0 {
		p.code.SetText("\n\nNo sessions. Create one with: inboxctl sessions create NAME")
		return
	}
	p.sessions.Select(cursor, 0)
	if s, ok := p.Selected(); ok {
		p.Show(s)
	}
}

// Selected returns the session under the cursor.
func (p *Pairing) Selected() (api.SessionInfo, bool) {
	row, _ := p.sessions.GetSelection()
	return p.at(row)
}

func (p *Pairing) at(row int) (api.SessionInfo, bool) {
	idx := row - 1
	if idx >= 0 && idx < len(p.items) {
		return p.items[idx], true
	}
	return api.SessionInfo{}, false
}

// Show renders one session's pairing state.
func (p *Pairing) Show(s api.SessionInfo) {
	p.code.Clear()
	switch s.Status {
	case domain.SessionConnected:
		_, _ = fmt.Fprintf(p.code, "\n\n%s✓ %s is connected[-]\n\n%s", ui.Tag(p.theme.OnlineColor), tview.Escape(s.Name), s.Phone)
		return
	case domain.SessionError:
		_, _ = fmt.Fprintf(p.code, "\n\n%sPairing failed.[-]\n\nPress c to try again.", ui.Tag(p.theme.ErrorColor))
		return
	}
	art, err := qr.ForSession(s.RawCode, s.PairingCode)
	switch {
	case errors.Is(err, qr.ErrNoCode):
		if s.Pairing {
			_, _ = fmt.Fprint(p.code, "\n\nWaiting for a pairing code...")
		} else {
			_, _ = fmt.Fprint(p.code, "\n\nPress c to start pairing.")
		}
	case err != nil:
		_, _ = fmt.Fprintf(p.code, "\n\nCode received but cannot be drawn: %s", tview.Escape(err.Error()))
	default:
		_, _ = fmt.Fprintf(p.code, "\n  Scan this code with the phone:\n\n%s\n  [::d]Waiting for confirmation...[::-]", art)
	}
}
