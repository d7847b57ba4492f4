package frame

import (
	"encoding/json"

	"github.com/talentpipe/inboxsync/internal/model"
	"github.com/talentpipe/inboxsync/internal/phone"
)

// ConnectionEstablished is the greeting sent once the socket is ready.
type ConnectionEstablished struct {
	ClientID string `json:"clientId"`
}

// QRCode carries a pairing code. QRCode is a base64 image; Code, when the
// backend sends it, is the raw string encoded in the image.
type QRCode struct {
	QRCode    string   `json:"qrCode"`
	Code      string   `json:"code,omitempty"`
	SessionID model.ID `json:"sessionId,omitempty"`
}

// NewMessage is an inbound message push.
type NewMessage struct {
	ContactID model.ID        `json:"candidatoId,omitempty"`
	Phone     string          `json:"telefone"`
	Body      string          `json:"mensagem"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	MessageID model.ID        `json:"mensagemId,omitempty"`
}

// Message converts the push into an inbound store entry.
func (n NewMessage) Message() model.Message {
	return model.Message{
		ID:        string(n.MessageID),
		Phone:     phone.Normalize(n.Phone),
		ContactID: string(n.ContactID),
		Direction: model.Inbound,
		Body:      n.Body,
		Status:    model.StatusReceived,
		SentAt:    model.ParseTime(n.Timestamp),
	}
}

// MessageSent acknowledges an outbound send.
type MessageSent struct {
	MessageID       model.ID `json:"mensagemId"`
	Success         *bool    `json:"success,omitempty"`
	ClientMessageID string   `json:"clientMessageId,omitempty"`
	Error           string   `json:"erro,omitempty"`
}

// Ack converts the frame. A missing success flag counts as success when the
// server id is present.
func (m MessageSent) Ack() model.Ack {
	ok := m.MessageID != "" && m.Error == ""
	if m.Success != nil {
		ok = *m.Success
	}
	return model.Ack{
		ClientID: m.ClientMessageID,
		ServerID: string(m.MessageID),
		Success:  ok,
		Error:    m.Error,
	}
}

// MessageStatusUpdate advances the status of a known message.
type MessageStatusUpdate struct {
	MessageID model.ID            `json:"mensagemId"`
	Status    model.MessageStatus `json:"status"`
}

// ContactHistory is a bulk history push for one contact.
type ContactHistory struct {
	ContactID model.ID        `json:"candidatoId"`
	History   []model.Message `json:"historico"`
}

// Session decodes a session_status payload. Some backends nest the snapshot
// under "session" or "sessao".
func (f Frame) Session() (model.Session, error) {
	var nested struct {
		Session json.RawMessage `json:"session"`
		Sessao  json.RawMessage `json:"sessao"`
	}
	var s model.Session
	if err := f.Payload(&nested); err != nil {
		return s, err
	}
	if len(nested.Session) > 0 && nested.Session[0] == '{' {
		return s, json.Unmarshal(nested.Session, &s)
	}
	if len(nested.Sessao) > 0 && nested.Sessao[0] == '{' {
		return s, json.Unmarshal(nested.Sessao, &s)
	}
	return s, f.Payload(&s)
}
