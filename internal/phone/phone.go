// Package phone normalises the phone identities used as conversation keys.
package phone

import (
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// Normalize reduces a phone number or a WhatsApp JID to its digits.
// "+55 (11) 99999-0000", "5511999990000@s.whatsapp.net" and
// "5511999990000:12@s.whatsapp.net" all become "5511999990000".
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "@") {
		if jid, err := types.ParseJID(raw); err == nil {
			raw = jid.ToNonAD().User
		} else {
			raw, _, _ = strings.Cut(raw, "@")
		}
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Equal reports whether a and b identify the same number. Empty values never match.
func Equal(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}

// JID renders a normalised number as a user JID.
func JID(raw string) string {
	n := Normalize(raw)
	if n == "" {
		return ""
	}
	return types.NewJID(n, types.DefaultUserServer).String()
}
