package views

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rivo/tview"
)

// clean strips the codepoints tcell draws badly (skin tones, joiners,
// variation selectors) and escapes tview color tags in user text.
func clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isProblematicRune(r) {
			b.WriteRune(r)
		}
		i += size
	}
	return tview.Escape(b.String())
}

func isProblematicRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	}
	return false
}

// oneLine flattens s for table cells.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stamp shows the time for today and the date otherwise.
func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("02/01")
}
