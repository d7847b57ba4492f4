package phone

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5511999990000", "5511999990000"},
		{"+55 (11) 99999-0000", "5511999990000"},
		{"5511999990000@s.whatsapp.net", "5511999990000"},
		{"5511999990000:12@s.whatsapp.net", "5511999990000"},
		{"  ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal("+55 11 99999-0000", "5511999990000@s.whatsapp.net") {
		t.Error("expected formatted number and JID to match")
	}
	if Equal("", "") {
		t.Error("empty numbers must not match")
	}
	if Equal("5511999990000", "5511999990001") {
		t.Error("different numbers matched")
	}
}

func TestJID(t *testing.T) {
	if got, want := JID("+55 11 99999-0000"), "5511999990000@s.whatsapp.net"; got != want {
		t.Errorf("JID() = %q, want %q", got, want)
	}
	if got := JID(""); got != "" {
		t.Errorf("JID(\"\") = %q, want empty", got)
	}
}
