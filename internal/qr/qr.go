// Package qr renders pairing codes for terminals. Two bitmap rows become one
// line of Unicode half blocks, so a ~57-module code fits in ~29 lines.
package qr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// ErrNoFinder is returned when an image has no recognisable finder pattern.
var ErrNoFinder = errors.New("qr: no finder pattern in image")

// ErrNoCode is returned by ForSession before the backend sent any code.
var ErrNoCode = errors.New("qr: no pairing code yet")

// Bitmap is a square grid of modules; true is dark.
type Bitmap [][]bool

// Encode builds the bitmap for content, quiet zone included.
func Encode(content string) (Bitmap, error) {
	code, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return nil, err
	}
	code.DisableBorder = false
	return code.Bitmap(), nil
}

// Render returns content as half-block art, or a one-line message when the
// content cannot be encoded.
func Render(content string) string {
	bm, err := Encode(content)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}
	return bm.String()
}

// RenderImage renders the picture the backend sends as the pairing code,
// either a data URL or bare base64.
func RenderImage(encoded string) (string, error) {
	bm, err := DecodeImage(encoded)
	if err != nil {
		return "", err
	}
	return bm.String(), nil
}

// DecodeImage samples a QR picture back into modules. The module size is
// taken from the top-left finder pattern, which is seven modules wide.
func DecodeImage(encoded string) (Bitmap, error) {
	if _, data, ok := strings.Cut(encoded, ","); ok && strings.HasPrefix(encoded, "data:") {
		encoded = data
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("qr: decode base64: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("qr: decode image: %w", err)
	}

	b := img.Bounds()
	dark := func(x, y int) bool {
		g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
		return g.Y < 128
	}

	x0, y0, found := -1, -1, false
	for y := b.Min.Y; y < b.Max.Y && !found; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if dark(x, y) {
				x0, y0, found = x, y, true
				break
			}
		}
	}
	if !found {
		return nil, ErrNoFinder
	}
	run := 0
	for x := x0; x < b.Max.X && dark(x, y0); x++ {
		run++
	}
	module := run / 7
	if module == 0 {
		return nil, ErrNoFinder
	}

	// Symbol width: walk right on the first dark row to the last dark pixel.
	x1 := x0
	for x := b.Max.X - 1; x > x0; x-- {
		if dark(x, y0) {
			x1 = x
			break
		}
	}
	n := (x1 - x0 + 1) / module
	if n < 21 {
		return nil, ErrNoFinder
	}

	const quiet = 4
	bm := make(Bitmap, n+2*quiet)
	for i := range bm {
		bm[i] = make([]bool, n+2*quiet)
	}
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			px := x0 + col*module + module/2
			py := y0 + row*module + module/2
			if px < b.Max.X && py < b.Max.Y {
				bm[row+quiet][col+quiet] = dark(px, py)
			}
		}
	}
	return bm, nil
}

func (bm Bitmap) String() string {
	rows := len(bm)
	cols := 0
	if rows > 0 {
		cols = len(bm[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bm[y][x]
			bot := false
			if y+1 < rows {
				bot = bm[y+1][x]
			}
			switch {
			case top && bot:
				sb.WriteRune('█') // █
			case top && !bot:
				sb.WriteRune('▀') // ▀
			case !top && bot:
				sb.WriteRune('▄') // ▄
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}

// ForSession picks the best rendering for a session's pairing state: the raw
// code when the backend sent one, else the decoded picture.
func ForSession(raw, picture string) (string, error) {
	if raw != "" {
		return Render(raw), nil
	}
	if picture == "" {
		return "", ErrNoCode
	}
	return RenderImage(picture)
}
