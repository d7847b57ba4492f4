package backend

import (
	"context"
	"net/http"

	"github.com/talentpipe/inboxsync/internal/model"
)

const sessionsPath = "/whatsapp/sessoes"

type sessionBody struct {
	Name string `json:"nome"`
}

// ListSessions returns every messaging account.
func (c *Client) ListSessions(ctx context.Context) ([]model.Session, error) {
	var out list[model.Session]
	if err := c.do(ctx, http.MethodGet, sessionsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession registers a new messaging account.
func (c *Client) CreateSession(ctx context.Context, name string) (model.Session, error) {
	var out model.Session
	err := c.do(ctx, http.MethodPost, sessionsPath, sessionBody{Name: name}, &out)
	return out, err
}

// UpdateSession renames a messaging account.
func (c *Client) UpdateSession(ctx context.Context, id, name string) (model.Session, error) {
	var out model.Session
	err := c.do(ctx, http.MethodPut, sessionsPath+"/"+pathEscape(id), sessionBody{Name: name}, &out)
	return out, err
}

// DeleteSession removes a messaging account.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, sessionsPath+"/"+pathEscape(id), nil, nil)
}

// ConnectSession starts pairing. The backend answers with the session
// snapshot; the pairing code itself normally arrives on the push channel.
func (c *Client) ConnectSession(ctx context.Context, id string) (model.Session, error) {
	var out model.Session
	err := c.do(ctx, http.MethodPost, sessionsPath+"/"+pathEscape(id)+"/conectar", nil, &out)
	return out, err
}

// DisconnectSession logs a messaging account out.
func (c *Client) DisconnectSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, sessionsPath+"/"+pathEscape(id)+"/desconectar", nil, nil)
}

// SessionStatus polls the current status of one account. A removed session
// yields an error matching ErrNotFound.
func (c *Client) SessionStatus(ctx context.Context, id string) (model.Session, error) {
	var out model.Session
	err := c.do(ctx, http.MethodGet, sessionsPath+"/"+pathEscape(id)+"/status", nil, &out)
	if out.ID == "" {
		out.ID = id
	}
	return out, err
}
