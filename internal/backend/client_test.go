package backend_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentpipe/inboxsync/internal/backend"
	"github.com/talentpipe/inboxsync/internal/backend/backendtest"
	"github.com/talentpipe/inboxsync/internal/model"
)

func newClient(t *testing.T) (*backend.Client, *backendtest.Server) {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	return backend.New(backend.Options{BaseURL: srv.URL}), srv
}

func TestSessionsCRUD(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	created, err := c.CreateSession(ctx, "Recrutamento")
	require.NoError(t, err)
	assert.Equal(t, "Recrutamento", created.Name)
	assert.Equal(t, model.SessionDisconnected, created.Status)

	updated, err := c.UpdateSession(ctx, created.ID, "RH")
	require.NoError(t, err)
	assert.Equal(t, "RH", updated.Name)

	list, err := c.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	require.NoError(t, c.DeleteSession(ctx, created.ID))
	err = c.DeleteSession(ctx, created.ID)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestSessionStatusScripted(t *testing.T) {
	c, srv := newClient(t)
	ctx := context.Background()
	srv.AddSession(model.Session{ID: "s1", Status: model.SessionDisconnected})
	srv.ScriptStatus("s1", "aguardando_qr", "conectado", backendtest.StatusNotFound)

	s, err := c.SessionStatus(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionAwaitingCode, s.Status)

	s, err = c.SessionStatus(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionConnected, s.Status)

	_, err = c.SessionStatus(ctx, "s1")
	assert.ErrorIs(t, err, backend.ErrNotFound)
	assert.Equal(t, 3, srv.Polls("s1"))
}

func TestHistoryAndConversations(t *testing.T) {
	c, srv := newClient(t)
	ctx := context.Background()
	srv.SetHistoryByPhone("5511999990000", model.Message{ID: "a", Phone: "5511999990000", Direction: model.Inbound, Body: "Oi", Status: model.StatusReceived})
	srv.SetHistoryByContact("7", model.Message{ID: "b", Phone: "5511988887777", ContactID: "7", Direction: model.Outbound, Body: "Olá", Status: model.StatusRead})
	srv.SetConversations(model.Conversation{Phone: "5511999990000", MessageCount: 1})
	srv.SetContacts(model.Contact{ID: "7", Name: "Ana", Phone: "5511988887777"})

	byPhone, err := c.HistoryByPhone(ctx, "5511999990000")
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, "Oi", byPhone[0].Body)

	byContact, err := c.HistoryByContact(ctx, "7")
	require.NoError(t, err)
	require.Len(t, byContact, 1)
	assert.Equal(t, model.StatusRead, byContact[0].Status)

	convs, err := c.ListConversations(ctx)
	require.NoError(t, err)
	assert.Len(t, convs, 1)

	contacts, err := c.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Ana", contacts[0].Name)
}

func TestSend(t *testing.T) {
	c, srv := newClient(t)
	ctx := context.Background()

	ack, err := c.Send(ctx, backend.SendRequest{Phone: "5511999990000", Body: "Olá", ClientID: "tmp-1"})
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Equal(t, "tmp-1", ack.ClientID)
	assert.NotEmpty(t, ack.ServerID)
	require.Len(t, srv.Sends(), 1)
	assert.Equal(t, "tmp-1", srv.Sends()[0].ClientID)

	srv.FailSends(true)
	_, err = c.Send(ctx, backend.SendRequest{Phone: "5511999990000", Body: "x", ClientID: "tmp-2"})
	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestTemplates(t *testing.T) {
	c, srv := newClient(t)
	ctx := context.Background()

	created, err := c.CreateTemplate(ctx, model.Template{Name: "convite", Body: "Olá {{nome}}"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	created.Body = "Oi {{nome}}"
	_, err = c.UpdateTemplate(ctx, created)
	require.NoError(t, err)

	got, err := c.GetTemplate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oi {{nome}}", got.Body)

	ack, err := c.SendTemplate(ctx, backend.TemplateSendRequest{Phone: "5511999990000", TemplateID: created.ID, ClientID: "tmp-3"})
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Len(t, srv.TemplateSends(), 1)

	require.NoError(t, c.DeleteTemplate(ctx, created.ID))
	list, err := c.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := backend.New(backend.Options{BaseURL: srv.URL + "/", Token: "secret"})
	_, err := c.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", got)
}

func TestSendSuccessFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"erro":"número inválido"}`))
	}))
	defer srv.Close()

	c := backend.New(backend.Options{BaseURL: srv.URL})
	ack, err := c.Send(context.Background(), backend.SendRequest{Phone: "1", Body: "x", ClientID: "tmp-9"})
	require.NoError(t, err)
	assert.False(t, ack.Success)
	assert.Equal(t, "número inválido", ack.Error)
}
