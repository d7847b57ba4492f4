package views

import (
	"fmt"
	"strconv"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	domain "github.com/talentpipe/inboxsync/internal/model"
	"github.com/talentpipe/inboxsync/internal/tui/ui"
)

// ConversationList is the table of conversations, most recent first.
type ConversationList struct {
	*tview.Table
	theme *ui.Theme
	items []domain.Conversation
}

// NewConversationList creates the conversation table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0).
		SetBorders(false)
	table.SetSelectedStyle(tcell.StyleDefault.Foreground(theme.TableCursorFg).Background(theme.TableCursorBg))
	theme.Frame(table.Box, "Conversations")
	return &ConversationList{Table: table, theme: theme}
}

// Update redraws the rows, keeping the cursor on the same phone.
func (cl *ConversationList) Update(items []domain.Conversation) {
	keep, _ := cl.Selected()
	cl.items = items
	cl.Clear()
	cl.SetTitle(fmt.Sprintf(" Conversations [%d] ", len(items)))

	for col, h := range []string{" PHONE", " NAME", " LAST MESSAGE", " #", " WHEN"} {
		cl.SetCell(0, col, tview.NewTableCell(h).SetSelectable(false).SetTextColor(cl.theme.TableHeaderFg))
	}
	cursor := 1
	for i, c := range items {
		row := i + 1
		name := c.Name
		if !c.Known {
			name = "[::d]" + clean(name) + " (new)[::-]"
		} else {
			name = clean(name)
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+c.Phone).SetMaxWidth(16))
		cl.SetCell(row, 1, tview.NewTableCell(" "+name).SetMaxWidth(28).SetExpansion(1))
		cl.SetCell(row, 2, tview.NewTableCell(" "+clean(oneLine(c.LastMessage))).SetMaxWidth(48).SetExpansion(2))
		cl.SetCell(row, 3, tview.NewTableCell(" "+strconv.Itoa(c.MessageCount)).SetAlign(tview.AlignRight))
		cl.SetCell(row, 4, tview.NewTableCell(" "+stamp(c.LastMessageAt)))
		if c.Phone == keep.Phone {
			cursor = row
		}
	}
	if len(items) > 0 {
		cl.Select(cursor, 0)
	}
}

// Selected returns the conversation under the cursor.
func (cl *ConversationList) Selected() (domain.Conversation, bool) {
	row, _ := cl.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(cl.items) {
		return cl.items[idx], true
	}
	return domain.Conversation{}, false
}
