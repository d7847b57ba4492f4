package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/talentpipe/inboxsync/internal/phone"
)

// Conversation is one entry of the conversation list. Phone is the identity;
// ContactID only enriches it.
type Conversation struct {
	Phone         string    `json:"telefone"`
	ContactID     string    `json:"candidatoId,omitempty"`
	Name          string    `json:"nome,omitempty"`
	LastMessage   string    `json:"ultimaMensagem,omitempty"`
	LastMessageAt time.Time `json:"ultimaMensagemEm"`
	MessageCount  int       `json:"totalMensagens"`
	Known         bool      `json:"conhecido"`
}

// UnmarshalJSON accepts the traffic listing shape.
func (c *Conversation) UnmarshalJSON(b []byte) error {
	var w struct {
		Telefone         string          `json:"telefone"`
		Phone            string          `json:"phone"`
		CandidatoID      ID              `json:"candidatoId"`
		Nome             string          `json:"nome"`
		CandidatoNome    string          `json:"candidatoNome"`
		UltimaMensagem   string          `json:"ultimaMensagem"`
		UltimaMensagemEm json.RawMessage `json:"ultimaMensagemEm"`
		UltimaAtividade  json.RawMessage `json:"ultimaAtividade"`
		TotalMensagens   int             `json:"totalMensagens"`
		Conhecido        bool            `json:"conhecido"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*c = Conversation{
		Phone:         phone.Normalize(first(w.Telefone, w.Phone)),
		ContactID:     string(w.CandidatoID),
		Name:          first(w.CandidatoNome, w.Nome),
		LastMessage:   w.UltimaMensagem,
		LastMessageAt: ParseTime(firstRaw(w.UltimaMensagemEm, w.UltimaAtividade)),
		MessageCount:  w.TotalMensagens,
		Known:         w.Conhecido || w.CandidatoID != "",
	}
	return nil
}

// Contact is a CRM candidate that may be messaged.
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"nome"`
	Phone string `json:"telefone"`
}

// UnmarshalJSON accepts numeric ids and alternate phone field names.
func (c *Contact) UnmarshalJSON(b []byte) error {
	var w struct {
		ID       ID     `json:"id"`
		Nome     string `json:"nome"`
		Name     string `json:"name"`
		Telefone string `json:"telefone"`
		Celular  string `json:"celular"`
		Phone    string `json:"phone"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*c = Contact{
		ID:    string(w.ID),
		Name:  first(w.Nome, w.Name),
		Phone: phone.Normalize(first(w.Telefone, w.Celular, w.Phone)),
	}
	return nil
}

// Template is a reusable message body with {{variable}} placeholders.
type Template struct {
	ID        string   `json:"id"`
	Name      string   `json:"nome"`
	Body      string   `json:"conteudo"`
	Variables []string `json:"variaveis,omitempty"`
}

// UnmarshalJSON accepts numeric template ids.
func (t *Template) UnmarshalJSON(b []byte) error {
	type plain Template
	var w struct {
		plain
		ID ID `json:"id"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*t = Template(w.plain)
	t.ID = string(w.ID)
	return nil
}

// Render substitutes {{name}} placeholders. Unknown placeholders are kept.
func (t Template) Render(vars map[string]string) string {
	out := t.Body
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}
