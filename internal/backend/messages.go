package backend

import (
	"context"
	"net/http"

	"github.com/talentpipe/inboxsync/internal/model"
)

const messagesPath = "/whatsapp/mensagens"

// ListConversations returns the conversations seen in message traffic.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var out list[model.Conversation]
	if err := c.do(ctx, http.MethodGet, "/whatsapp/conversas", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListContacts returns CRM candidates that have a phone number.
func (c *Client) ListContacts(ctx context.Context) ([]model.Contact, error) {
	var out list[model.Contact]
	if err := c.do(ctx, http.MethodGet, "/candidatos?comTelefone=true", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HistoryByContact fetches the thread of a known contact.
func (c *Client) HistoryByContact(ctx context.Context, contactID string) ([]model.Message, error) {
	var out list[model.Message]
	if err := c.do(ctx, http.MethodGet, messagesPath+"/candidato/"+pathEscape(contactID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HistoryByPhone fetches the thread of a number with no linked contact.
func (c *Client) HistoryByPhone(ctx context.Context, phone string) ([]model.Message, error) {
	var out list[model.Message]
	if err := c.do(ctx, http.MethodGet, messagesPath+"/telefone/"+pathEscape(phone), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendRequest is a direct text send.
type SendRequest struct {
	Phone     string `json:"telefone"`
	ContactID string `json:"candidatoId,omitempty"`
	Body      string `json:"mensagem"`
	ClientID  string `json:"clientMessageId"`
	SessionID string `json:"sessaoId,omitempty"`
}

// TemplateSendRequest sends a stored template.
type TemplateSendRequest struct {
	Phone      string            `json:"telefone"`
	ContactID  string            `json:"candidatoId,omitempty"`
	TemplateID string            `json:"templateId"`
	Variables  map[string]string `json:"variaveis,omitempty"`
	ClientID   string            `json:"clientMessageId"`
	SessionID  string            `json:"sessaoId,omitempty"`
}

type sendResponse struct {
	ID         model.ID `json:"id"`
	MensagemID model.ID `json:"mensagemId"`
	Success    *bool    `json:"success"`
	Erro       string   `json:"erro"`
}

func (r sendResponse) ack(clientID string) model.Ack {
	serverID := string(r.MensagemID)
	if serverID == "" {
		serverID = string(r.ID)
	}
	ok := r.Erro == ""
	if r.Success != nil {
		ok = *r.Success
	}
	return model.Ack{ClientID: clientID, ServerID: serverID, Success: ok, Error: r.Erro}
}

// Send posts a text message. A 2xx answer with success=false is returned as
// an Ack with Success unset, not as an error.
func (c *Client) Send(ctx context.Context, req SendRequest) (model.Ack, error) {
	var out sendResponse
	if err := c.do(ctx, http.MethodPost, messagesPath, req, &out); err != nil {
		return model.Ack{ClientID: req.ClientID}, err
	}
	return out.ack(req.ClientID), nil
}

// SendTemplate posts a template message.
func (c *Client) SendTemplate(ctx context.Context, req TemplateSendRequest) (model.Ack, error) {
	var out sendResponse
	if err := c.do(ctx, http.MethodPost, messagesPath+"/template", req, &out); err != nil {
		return model.Ack{ClientID: req.ClientID}, err
	}
	return out.ack(req.ClientID), nil
}
