package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseSessionStatus(t *testing.T) {
	tests := []struct {
		in   string
		want SessionStatus
	}{
		{"conectado", SessionConnected},
		{"CONNECTED", SessionConnected},
		{"desconectado", SessionDisconnected},
		{"erro", SessionError},
		{"aguardando_qr", SessionAwaitingCode},
		{"conectando", SessionStatus("conectando")},
	}
	for _, tt := range tests {
		if got := ParseSessionStatus(tt.in); got != tt.want {
			t.Errorf("ParseSessionStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if SessionStatus("conectando").Known() {
		t.Error("conectando should not be a known state")
	}
}

func TestMessageStatusAdvances(t *testing.T) {
	tests := []struct {
		from, to MessageStatus
		want     bool
	}{
		{StatusSending, StatusSent, true},
		{StatusSending, StatusError, true},
		{StatusSent, StatusDelivered, true},
		{StatusDelivered, StatusRead, true},
		{StatusSending, StatusRead, true},
		{StatusRead, StatusDelivered, false},
		{StatusDelivered, StatusSent, false},
		{StatusSent, StatusError, false},
		{StatusSent, StatusSent, false},
		{StatusReceived, StatusRead, false},
		{StatusSent, MessageStatus("bogus"), false},
	}
	for _, tt := range tests {
		if got := tt.from.Advances(tt.to); got != tt.want {
			t.Errorf("%s.Advances(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestMessageUnmarshalHistoryShapes(t *testing.T) {
	raw := `[
		{"id": 17, "telefone": "5511999990000@s.whatsapp.net", "candidatoId": 9, "direcao": "saida", "conteudo": "Olá", "status": "entregue", "enviadoEm": "2024-05-01T10:00:00Z"},
		{"mensagemId": "w2", "phone": "+55 11 99999-0000", "fromMe": false, "mensagem": "Oi", "status": "lida", "timestamp": 1714557660000}
	]`
	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	out := msgs[0]
	if out.ID != "17" || out.ContactID != "9" || out.Phone != "5511999990000" {
		t.Errorf("identity = %q/%q/%q", out.ID, out.ContactID, out.Phone)
	}
	if out.Direction != Outbound || out.Status != StatusDelivered || out.Body != "Olá" {
		t.Errorf("outbound = %+v", out)
	}
	if !out.SentAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("SentAt = %v", out.SentAt)
	}
	in := msgs[1]
	if in.Direction != Inbound || in.Status != StatusReceived {
		t.Errorf("inbound messages are always received, got %s/%s", in.Direction, in.Status)
	}
	if in.SentAt.UnixMilli() != 1714557660000 {
		t.Errorf("SentAt millis = %d", in.SentAt.UnixMilli())
	}
}

func TestMessageRoundTrip(t *testing.T) {
	want := Message{
		ID: "m1", ClientID: "tmp-1", Phone: "5511999990000", Direction: Outbound,
		Body: "Olá", Status: StatusSent, SentAt: time.Unix(1714557600, 0).UTC(),
	}
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestUnconfirmed(t *testing.T) {
	local := Message{ID: NewTempID(), Direction: Outbound, Status: StatusError}
	if !local.Unconfirmed() {
		t.Error("failed local send should be unconfirmed")
	}
	local.ID = "m1"
	if local.Unconfirmed() {
		t.Error("server-confirmed message reported unconfirmed")
	}
}

func TestSessionUnmarshal(t *testing.T) {
	var s Session
	if err := json.Unmarshal([]byte(`{"sessionId": 3, "name": "Recrutamento", "phoneNumber": "5511988887777", "status": "conectado"}`), &s); err != nil {
		t.Fatal(err)
	}
	want := Session{ID: "3", Name: "Recrutamento", Phone: "5511988887777", Status: SessionConnected}
	if s != want {
		t.Errorf("got %+v, want %+v", s, want)
	}
}

func TestConversationKnownFromContactID(t *testing.T) {
	var c Conversation
	if err := json.Unmarshal([]byte(`{"telefone": "5511999990000", "candidatoId": 4, "candidatoNome": "Ana", "ultimaAtividade": 1714557600}`), &c); err != nil {
		t.Fatal(err)
	}
	if !c.Known || c.ContactID != "4" || c.Name != "Ana" {
		t.Errorf("got %+v", c)
	}
	if c.LastMessageAt.Unix() != 1714557600 {
		t.Errorf("LastMessageAt = %v", c.LastMessageAt)
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{`"2024-05-01T10:00:00Z"`, 1714557600},
		{`"2024-05-01 10:00:00"`, 1714557600},
		{`1714557600`, 1714557600},
		{`1714557600000`, 1714557600},
		{`"1714557600000"`, 1714557600},
	}
	for _, tt := range tests {
		if got := ParseTime(json.RawMessage(tt.in)).Unix(); got != tt.want {
			t.Errorf("ParseTime(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if !ParseTime(json.RawMessage(`"not a time"`)).IsZero() {
		t.Error("expected zero time for garbage")
	}
}

func TestTemplateRender(t *testing.T) {
	var tpl Template
	if err := json.Unmarshal([]byte(`{"id": 5, "nome": "convite", "conteudo": "Olá {{nome}}, vaga {{vaga}}"}`), &tpl); err != nil {
		t.Fatal(err)
	}
	if tpl.ID != "5" || tpl.Name != "convite" {
		t.Errorf("got %+v", tpl)
	}
	got := tpl.Render(map[string]string{"nome": "Ana"})
	if want := "Olá Ana, vaga {{vaga}}"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}
