package frame

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/talentpipe/inboxsync/internal/model"
)

func TestDecodeFlatAndNested(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"flat", `{"type":"new_message","telefone":"5511999990000","mensagem":"Oi"}`},
		{"nested", `{"type":"new_message","data":{"telefone":"5511999990000","mensagem":"Oi"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if f.Type != TypeNewMessage {
				t.Errorf("Type = %q, want %q", f.Type, TypeNewMessage)
			}
			var p NewMessage
			if err := f.Payload(&p); err != nil {
				t.Fatal(err)
			}
			m := p.Message()
			if m.Phone != "5511999990000" || m.Body != "Oi" {
				t.Errorf("got %+v", m)
			}
			if m.Direction != model.Inbound || m.Status != model.StatusReceived {
				t.Errorf("inbound push decoded as %s/%s", m.Direction, m.Status)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte(`{"data":{}}`)); !errors.Is(err, ErrMissingType) {
		t.Errorf("err = %v, want ErrMissingType", err)
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed frame")
	}
}

func TestMessageSentAck(t *testing.T) {
	tests := []struct {
		raw  string
		want model.Ack
	}{
		{`{"type":"message_sent","mensagemId":"m1","success":true}`, model.Ack{ServerID: "m1", Success: true}},
		{`{"type":"message_sent","mensagemId":42}`, model.Ack{ServerID: "42", Success: true}},
		{`{"type":"message_sent","clientMessageId":"tmp-1","success":false,"erro":"sessão desconectada"}`,
			model.Ack{ClientID: "tmp-1", Success: false, Error: "sessão desconectada"}},
	}
	for _, tt := range tests {
		f, err := Decode([]byte(tt.raw))
		if err != nil {
			t.Fatal(err)
		}
		var p MessageSent
		if err := f.Payload(&p); err != nil {
			t.Fatal(err)
		}
		if got := p.Ack(); got != tt.want {
			t.Errorf("Ack() = %+v, want %+v", got, tt.want)
		}
	}
}

func TestStatusUpdateNormalises(t *testing.T) {
	f, err := Decode([]byte(`{"type":"message_status_update","data":{"mensagemId":"m1","status":"lida"}}`))
	if err != nil {
		t.Fatal(err)
	}
	var p MessageStatusUpdate
	if err := f.Payload(&p); err != nil {
		t.Fatal(err)
	}
	if p.MessageID != "m1" || p.Status != model.StatusRead {
		t.Errorf("got %+v", p)
	}
}

func TestSessionSnapshot(t *testing.T) {
	tests := []string{
		`{"type":"session_status","sessionId":"s1","status":"conectado","telefone":"5511988887777"}`,
		`{"type":"session_status","data":{"session":{"id":"s1","status":"connected","phone":"5511988887777"}}}`,
	}
	for _, raw := range tests {
		f, err := Decode([]byte(raw))
		if err != nil {
			t.Fatal(err)
		}
		s, err := f.Session()
		if err != nil {
			t.Fatal(err)
		}
		if s.ID != "s1" || s.Status != model.SessionConnected || s.Phone != "5511988887777" {
			t.Errorf("Session() = %+v", s)
		}
	}
}

func TestContactHistory(t *testing.T) {
	f, err := Decode([]byte(`{"type":"candidato_historico","candidatoId":7,"historico":[{"id":"a","mensagem":"x","direcao":"entrada"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	var p ContactHistory
	if err := f.Payload(&p); err != nil {
		t.Fatal(err)
	}
	if p.ContactID != "7" || len(p.History) != 1 || p.History[0].Status != model.StatusReceived {
		t.Errorf("got %+v", p)
	}
}

func TestEncodeCommands(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{SubscribeSession("s1", "acc", "u1"), `{"type":"subscribe_session","sessionId":"s1","accountId":"acc","userId":"u1"}`},
		{GetQRCode("s1"), `{"type":"get_qr_code","sessionId":"s1"}`},
		{SubscribeContact("7", "5511999990000"), `{"type":"subscribe_candidato","candidatoId":"7"}`},
		{SubscribeContact("", "5511999990000"), `{"type":"subscribe_candidato","telefone":"5511999990000"}`},
	}
	for _, tt := range tests {
		data, err := Encode(tt.cmd)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != tt.want {
			t.Errorf("Encode() = %s, want %s", data, tt.want)
		}
	}
}

func TestNewFrame(t *testing.T) {
	f, err := New(TypeQRCode, QRCode{QRCode: "aW1n", Code: "2@abc"})
	if err != nil {
		t.Fatal(err)
	}
	var back QRCode
	if err := json.Unmarshal(f.Raw(), &back); err != nil {
		t.Fatal(err)
	}
	if back.Code != "2@abc" || back.QRCode != "aW1n" {
		t.Errorf("got %+v", back)
	}
}
