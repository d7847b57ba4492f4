package qr

import (
	"encoding/base64"
	"strings"
	"testing"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHalvesRows(t *testing.T) {
	bm, err := Encode("2@pairing-token,abc,def")
	require.NoError(t, err)

	out := Render("2@pairing-token,abc,def")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, (len(bm)+1)/2, len(lines))
	assert.Contains(t, out, "█")
}

func TestDecodeImageRoundTrip(t *testing.T) {
	const content = "2@pairing-token,abc,def"
	want, err := Encode(content)
	require.NoError(t, err)

	png, err := qrcode.Encode(content, qrcode.Low, -4)
	require.NoError(t, err)

	for name, encoded := range map[string]string{
		"bare":    base64.StdEncoding.EncodeToString(png),
		"dataURL": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := DecodeImage(encoded)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecodeImageErrors(t *testing.T) {
	_, err := DecodeImage("not base64!")
	assert.Error(t, err)

	_, err = DecodeImage(base64.StdEncoding.EncodeToString([]byte("plain text")))
	assert.Error(t, err)
}

func TestForSession(t *testing.T) {
	_, err := ForSession("", "")
	assert.ErrorIs(t, err, ErrNoCode)

	out, err := ForSession("raw-code", "")
	require.NoError(t, err)
	assert.Equal(t, Render("raw-code"), out)
}
