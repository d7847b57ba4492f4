package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talentpipe/inboxsync/internal/phone"
)

// Direction tells who authored a message.
type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

// ParseDirection accepts the backend's direction spellings.
func ParseDirection(raw string) Direction {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "outbound", "out", "saida", "saída", "enviada", "sent":
		return Outbound
	case "inbound", "in", "entrada", "recebida", "received":
		return Inbound
	}
	return ""
}

// TempPrefix marks a locally generated id that the server has not confirmed.
const TempPrefix = "tmp-"

// NewTempID returns a fresh temporary message id.
func NewTempID() string {
	return TempPrefix + uuid.NewString()
}

// IsTempID reports whether id was generated locally.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// Message is one entry of a conversation thread. ClientID keeps the
// temporary id of an outbound message after the server id replaces it.
type Message struct {
	ID        string        `json:"id"`
	ClientID  string        `json:"clientMessageId,omitempty"`
	Phone     string        `json:"telefone"`
	ContactID string        `json:"candidatoId,omitempty"`
	Direction Direction     `json:"direcao"`
	Body      string        `json:"mensagem"`
	Status    MessageStatus `json:"status"`
	SentAt    time.Time     `json:"timestamp"`
}

// Unconfirmed reports whether m is a local send the server never accepted.
func (m Message) Unconfirmed() bool {
	return m.Direction == Outbound && IsTempID(m.ID) &&
		(m.Status == StatusSending || m.Status == StatusError)
}

// UnmarshalJSON accepts the history payload spellings used by the backend.
func (m *Message) UnmarshalJSON(b []byte) error {
	var w struct {
		ID          ID              `json:"id"`
		MensagemID  ID              `json:"mensagemId"`
		ClientID    string          `json:"clientMessageId"`
		Telefone    string          `json:"telefone"`
		Phone       string          `json:"phone"`
		CandidatoID ID              `json:"candidatoId"`
		Direcao     string          `json:"direcao"`
		Direction   string          `json:"direction"`
		FromMe      *bool           `json:"fromMe"`
		Mensagem    string          `json:"mensagem"`
		Conteudo    string          `json:"conteudo"`
		Body        string          `json:"body"`
		Status      string          `json:"status"`
		Timestamp   json.RawMessage `json:"timestamp"`
		EnviadoEm   json.RawMessage `json:"enviadoEm"`
		CriadoEm    json.RawMessage `json:"criadoEm"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = Message{
		ID:        first(string(w.ID), string(w.MensagemID)),
		ClientID:  w.ClientID,
		Phone:     phone.Normalize(first(w.Telefone, w.Phone)),
		ContactID: string(w.CandidatoID),
		Direction: ParseDirection(first(w.Direcao, w.Direction)),
		Body:      first(w.Mensagem, w.Conteudo, w.Body),
		Status:    ParseMessageStatus(w.Status),
		SentAt:    ParseTime(firstRaw(w.Timestamp, w.EnviadoEm, w.CriadoEm)),
	}
	if m.Direction == "" && w.FromMe != nil {
		m.Direction = Inbound
		if *w.FromMe {
			m.Direction = Outbound
		}
	}
	if m.Direction == "" {
		if m.Status == StatusReceived {
			m.Direction = Inbound
		} else {
			m.Direction = Outbound
		}
	}
	if m.Direction == Inbound {
		m.Status = StatusReceived
	}
	return nil
}

// Ack is the server's answer to an outbound send.
type Ack struct {
	ClientID string
	ServerID string
	Success  bool
	Error    string
}
