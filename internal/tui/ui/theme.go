package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Theme holds the colors the views share.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	TableHeaderFg    tcell.Color
	TableCursorFg    tcell.Color
	TableCursorBg    tcell.Color
	MenuKeyColor     tcell.Color
	TitleColor       tcell.Color
	OnlineColor      tcell.Color
	OfflineColor     tcell.Color
	FlashColor       tcell.Color
	ErrorColor       tcell.Color
	BarBgColor       tcell.Color
}

// DefaultTheme returns a k9s-inspired dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorCadetBlue,
		BorderColor:      tcell.ColorDodgerBlue,
		BorderFocusColor: tcell.ColorLightSkyBlue,
		TableHeaderFg:    tcell.ColorWhite,
		TableCursorFg:    tcell.ColorBlack,
		TableCursorBg:    tcell.ColorAqua,
		MenuKeyColor:     tcell.ColorDodgerBlue,
		TitleColor:       tcell.ColorFuchsia,
		OnlineColor:      tcell.ColorLime,
		OfflineColor:     tcell.ColorOrangeRed,
		FlashColor:       tcell.ColorNavajoWhite,
		ErrorColor:       tcell.ColorOrangeRed,
		BarBgColor:       tcell.ColorNavy,
	}
}

// Tag returns a tview color tag such as "[#00ff00]".
func Tag(c tcell.Color) string {
	return fmt.Sprintf("[#%06x]", c.Hex())
}

// Frame applies the theme's border and title colors to a box.
func (t *Theme) Frame(b *tview.Box, title string) {
	b.SetBorder(true).
		SetTitle(" " + title + " ").
		SetTitleColor(t.TitleColor).
		SetBorderColor(t.BorderColor).
		SetBackgroundColor(t.BgColor)
	b.SetFocusFunc(func() { b.SetBorderColor(t.BorderFocusColor) })
	b.SetBlurFunc(func() { b.SetBorderColor(t.BorderColor) })
}
