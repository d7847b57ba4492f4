package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentpipe/inboxsync/internal/backend"
	"github.com/talentpipe/inboxsync/internal/backend/backendtest"
	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/channel"
	"github.com/talentpipe/inboxsync/internal/frame"
	"github.com/talentpipe/inboxsync/internal/model"
	"github.com/talentpipe/inboxsync/internal/pairing"
	"github.com/talentpipe/inboxsync/internal/store"
)

const (
	phoneA  = "5511999990000"
	phoneB  = "5511888880000"
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMigrated(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fixture struct {
	srv    *backendtest.Server
	bus    *bus.Bus
	engine *Engine
}

func newEngine(t *testing.T, srv *backendtest.Server, journal *store.DB, opts pairing.Options) *fixture {
	t.Helper()
	b := bus.New()
	if opts.GraceDelay == 0 {
		opts.GraceDelay = time.Millisecond
	}
	if opts.Interval == 0 {
		opts.Interval = 10 * time.Millisecond
	}
	if opts.MaxElapsed == 0 {
		opts.MaxElapsed = 2 * time.Second
	}
	conn := channel.New(channel.Options{
		URL:             srv.WSURL(),
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     50 * time.Millisecond,
		Bus:             b,
	})
	e := New(Deps{
		Backend:           backend.New(backend.Options{BaseURL: srv.URL}),
		Channel:           conn,
		Journal:           journal,
		Bus:               b,
		Pairing:           opts,
		DirectoryDebounce: 10 * time.Millisecond,
	})
	t.Cleanup(e.Close)
	return &fixture{srv: srv, bus: b, engine: e}
}

// newFixture starts an engine against a fresh fake backend and waits for
// the push channel.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	f := newEngine(t, srv, nil, pairing.Options{})
	f.start(t)
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	f.engine.Start(context.Background())
	require.Eventually(t, func() bool { return f.engine.Status().Connected }, waitFor, tick)
}

func (f *fixture) push(t *testing.T, typ string, payload any) {
	t.Helper()
	require.NoError(t, f.srv.Push(typ, payload))
}

func (f *fixture) thread(p string) []model.Message {
	return f.engine.Messages().Messages(p)
}

func TestInboundAfterEmptyHistory(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Open(context.Background(), phoneA, "")
	require.NoError(t, err)
	assert.Empty(t, f.thread(phoneA))

	f.push(t, frame.TypeNewMessage, map[string]any{"telefone": phoneA, "mensagem": "Oi"})
	require.Eventually(t, func() bool { return len(f.thread(phoneA)) == 1 }, waitFor, tick)

	got := f.thread(phoneA)[0]
	assert.Equal(t, model.Inbound, got.Direction)
	assert.Equal(t, model.StatusReceived, got.Status)
	assert.Equal(t, "Oi", got.Body)
}

func TestInboundRoutedBySelectionAtDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Open(ctx, phoneA, "")
	require.NoError(t, err)
	_, err = f.engine.Open(ctx, phoneB, "")
	require.NoError(t, err)

	f.push(t, frame.TypeNewMessage, map[string]any{"telefone": phoneA, "mensagem": "para A", "mensagemId": "in-1"})
	// A message for B proves the first frame has been dispatched.
	f.push(t, frame.TypeNewMessage, map[string]any{"telefone": phoneB, "mensagem": "para B", "mensagemId": "in-2"})
	require.Eventually(t, func() bool { return len(f.thread(phoneB)) == 1 }, waitFor, tick)

	assert.Empty(t, f.thread(phoneA))
	assert.Equal(t, "para B", f.thread(phoneB)[0].Body)
	_, ok := f.engine.Messages().Get("in-1")
	assert.False(t, ok)
}

func TestInboundTriggersListRefresh(t *testing.T) {
	f := newFixture(t)
	require.Eventually(t, func() bool { return f.srv.ListHits() >= 1 }, waitFor, tick)
	f.srv.SetConversations(model.Conversation{Phone: phoneB, LastMessage: "novo"})
	before := f.srv.ListHits()

	f.push(t, frame.TypeNewMessage, map[string]any{"telefone": phoneB, "mensagem": "novo"})
	require.Eventually(t, func() bool { return f.srv.ListHits() > before }, waitFor, tick)
	require.Eventually(t, func() bool {
		_, ok := f.engine.Directory().Lookup(phoneB)
		return ok
	}, waitFor, tick)
}

func TestStaleHistoryIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	discarded, unsub := f.bus.Subscribe(bus.HistoryDiscarded, 4)
	defer unsub()

	f.srv.SetHistoryByPhone(phoneA, model.Message{ID: "a1", Phone: phoneA, Direction: model.Inbound, Body: "de A"})
	f.srv.SetHistoryByPhone(phoneB, model.Message{ID: "b1", Phone: phoneB, Direction: model.Inbound, Body: "de B"})
	release := f.srv.HoldHistoryByPhone(phoneA)

	errA := make(chan error, 1)
	go func() {
		_, err := f.engine.Open(ctx, phoneA, "")
		errA <- err
	}()
	require.Eventually(t, func() bool { return f.srv.HistoryHits(phoneA) == 1 }, waitFor, tick)

	_, err := f.engine.Open(ctx, phoneB, "")
	require.NoError(t, err)
	release()

	select {
	case err := <-errA:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(waitFor):
		t.Fatal("first Open never returned")
	}
	select {
	case <-discarded:
	case <-time.After(waitFor):
		t.Fatal("no history.discarded event")
	}

	require.Len(t, f.thread(phoneB), 1)
	assert.Equal(t, "b1", f.thread(phoneB)[0].ID)
	assert.Empty(t, f.thread(phoneA))
	assert.Equal(t, phoneB, f.engine.Selection().Current().Phone)
}

func TestSendAckedByPush(t *testing.T) {
	f := newFixture(t)
	f.srv.AckViaPush(true)
	_, err := f.engine.Open(context.Background(), phoneA, "")
	require.NoError(t, err)

	msg, err := f.engine.Send("Olá")
	require.NoError(t, err)
	require.Len(t, f.thread(phoneA), 1)
	assert.Equal(t, model.StatusSending, f.thread(phoneA)[0].Status)
	require.Eventually(t, func() bool { return len(f.srv.Sends()) == 1 }, waitFor, tick)

	f.push(t, frame.TypeMessageSent, map[string]any{"mensagemId": "m1", "success": true})
	require.Eventually(t, func() bool {
		m, ok := f.engine.Messages().Get(msg.ClientID)
		return ok && m.ID == "m1" && m.Status == model.StatusSent
	}, waitFor, tick)
	require.Len(t, f.thread(phoneA), 1)
}

func TestStatusUpdatesAfterIDSwap(t *testing.T) {
	f := newFixture(t)
	f.srv.AckViaPush(true)
	_, err := f.engine.Open(context.Background(), phoneA, "")
	require.NoError(t, err)

	_, err = f.engine.Send("Olá")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(f.srv.Sends()) == 1 }, waitFor, tick)
	f.push(t, frame.TypeMessageSent, map[string]any{"mensagemId": "m1", "success": true})
	require.Eventually(t, func() bool {
		m, ok := f.engine.Messages().Get("m1")
		return ok && m.Status == model.StatusSent
	}, waitFor, tick)

	statusOf := func() model.MessageStatus {
		m, _ := f.engine.Messages().Get("m1")
		return m.Status
	}
	f.push(t, frame.TypeMessageStatusUpdate, map[string]any{"mensagemId": "m1", "status": "entregue"})
	require.Eventually(t, func() bool { return statusOf() == model.StatusDelivered }, waitFor, tick)

	// Regressions and repeats are ignored.
	f.push(t, frame.TypeMessageStatusUpdate, map[string]any{"mensagemId": "m1", "status": "enviada"})
	f.push(t, frame.TypeMessageStatusUpdate, map[string]any{"mensagemId": "m1", "status": "delivered"})
	f.push(t, frame.TypeMessageStatusUpdate, map[string]any{"mensagemId": "m1", "status": "lida"})
	require.Eventually(t, func() bool { return statusOf() == model.StatusRead }, waitFor, tick)
	f.push(t, frame.TypeMessageStatusUpdate, map[string]any{"mensagemId": "m1", "status": "delivered"})
	f.push(t, frame.TypeNewMessage, map[string]any{"telefone": phoneA, "mensagem": "sync", "mensagemId": "in-9"})
	require.Eventually(t, func() bool { return len(f.thread(phoneA)) == 2 }, waitFor, tick)

	assert.Equal(t, model.StatusRead, statusOf())
	outbound := 0
	for _, m := range f.thread(phoneA) {
		if m.Direction == model.Outbound {
			outbound++
		}
	}
	assert.Equal(t, 1, outbound)
}

func TestAckAfterSwitchingConversation(t *testing.T) {
	f := newFixture(t)
	f.srv.AckViaPush(true)
	ctx := context.Background()
	_, err := f.engine.Open(ctx, phoneA, "")
	require.NoError(t, err)

	msg, err := f.engine.Send("Olá")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(f.srv.Sends()) == 1 }, waitFor, tick)

	_, err = f.engine.Open(ctx, phoneB, "")
	require.NoError(t, err)
	f.push(t, frame.TypeMessageSent, map[string]any{"mensagemId": "m1", "success": true})

	require.Eventually(t, func() bool {
		m, ok := f.engine.Messages().Get(msg.ClientID)
		return ok && m.ID == "m1" && m.Status == model.StatusSent
	}, waitFor, tick)
	require.Len(t, f.thread(phoneA), 1)
	assert.Equal(t, "m1", f.thread(phoneA)[0].ID)
	assert.Empty(t, f.thread(phoneB))
}

func TestPairingPollEndsDisconnected(t *testing.T) {
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	srv.AddSession(model.Session{ID: "s1", Name: "Recrutamento", Status: model.SessionDisconnected})
	srv.ScriptStatus("s1", "desconectado")
	f := newEngine(t, srv, nil, pairing.Options{DisconnectConfirmations: 3})
	f.start(t)

	ctl := f.engine.Pairing()
	require.NoError(t, ctl.Connect(context.Background(), "s1"))
	v, _ := ctl.Session("s1")
	assert.True(t, v.Pairing)

	require.Eventually(t, func() bool {
		v, _ := ctl.Session("s1")
		return !v.Pairing && !v.Polling
	}, waitFor, tick)
	assert.Equal(t, model.SessionDisconnected, ctl.State("s1"))
	assert.Equal(t, 3, srv.Polls("s1"))
}

func TestSessionPushesReachPairing(t *testing.T) {
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	srv.AddSession(model.Session{ID: "s1", Name: "Recrutamento", Status: model.SessionDisconnected})
	f := newEngine(t, srv, nil, pairing.Options{GraceDelay: time.Second})
	f.start(t)
	ctl := f.engine.Pairing()
	require.NoError(t, ctl.Connect(context.Background(), "s1"))

	f.push(t, frame.TypeQRCode, map[string]any{"qrCode": "data:image/png;base64,AAAA", "code": "2@abc", "sessionId": "s1"})
	require.Eventually(t, func() bool {
		v, _ := ctl.Session("s1")
		return v.RawCode == "2@abc"
	}, waitFor, tick)
	assert.Equal(t, model.SessionAwaitingCode, ctl.State("s1"))

	f.push(t, frame.TypeSessionStatus, map[string]any{"session": map[string]any{"id": "s1", "status": "conectado", "telefone": phoneA}})
	require.Eventually(t, func() bool { return ctl.State("s1") == model.SessionConnected }, waitFor, tick)
	v, _ := ctl.Session("s1")
	assert.False(t, v.Pairing)
}

func TestContactHistoryPush(t *testing.T) {
	f := newFixture(t)
	f.srv.SetHistoryByContact("7", model.Message{ID: "h1", Direction: model.Inbound, Body: "antiga"})

	_, err := f.engine.Open(context.Background(), phoneA, "7")
	require.NoError(t, err)
	require.Len(t, f.thread(phoneA), 1)

	f.push(t, frame.TypeContactHistory, map[string]any{
		"candidatoId": "8",
		"historico":   []map[string]any{{"id": "x1", "mensagem": "outro", "direcao": "entrada"}},
	})
	f.push(t, frame.TypeContactHistory, map[string]any{
		"candidatoId": 7,
		"historico": []map[string]any{
			{"id": "h1", "mensagem": "antiga", "direcao": "entrada"},
			{"id": "h2", "mensagem": "nova", "direcao": "entrada"},
		},
	})
	require.Eventually(t, func() bool { return len(f.thread(phoneA)) == 2 }, waitFor, tick)
	_, ok := f.engine.Messages().Get("x1")
	assert.False(t, ok)
}

func TestOpenLinksContactFromDirectory(t *testing.T) {
	f := newFixture(t)
	f.srv.SetContacts(model.Contact{ID: "7", Name: "Ana", Phone: phoneA})
	f.srv.SetHistoryByContact("7", model.Message{ID: "h1", Direction: model.Inbound, Body: "oi"})
	require.NoError(t, f.engine.Directory().Refresh(context.Background()))

	sel, err := f.engine.Open(context.Background(), "+55 (11) 99999-0000", "")
	require.NoError(t, err)
	assert.Equal(t, "7", sel.ContactID)
	assert.Len(t, f.thread(phoneA), 1)
	require.Eventually(t, func() bool {
		for _, c := range f.srv.CommandsOfType(frame.CmdSubscribeContact) {
			if c.ContactID == "7" {
				return true
			}
		}
		return false
	}, waitFor, tick)
}

func TestSendPreconditions(t *testing.T) {
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	f := newEngine(t, srv, nil, pairing.Options{})

	_, err := f.engine.Send("oi")
	assert.ErrorIs(t, err, ErrNoSelection)

	_, err = f.engine.Open(context.Background(), phoneA, "")
	require.NoError(t, err)
	_, err = f.engine.Send("oi")
	assert.True(t, errors.Is(err, channel.ErrNotConnected), "got %v", err)
	assert.Empty(t, f.thread(phoneA))

	_, err = f.engine.Open(context.Background(), "sem número", "")
	assert.ErrorIs(t, err, ErrNoPhone)
}

func TestReconnectResubscribesAndRefetches(t *testing.T) {
	f := newFixture(t)
	f.srv.AddSession(model.Session{ID: "s1", Name: "Recrutamento"})
	require.NoError(t, f.engine.Pairing().Refresh(context.Background()))
	_, err := f.engine.Open(context.Background(), phoneA, "")
	require.NoError(t, err)
	hits := f.srv.HistoryHits(phoneA)

	f.srv.DropConnections()
	require.Eventually(t, func() bool { return f.srv.Dials() >= 2 && f.engine.Status().Connected }, waitFor, tick)
	require.Eventually(t, func() bool { return f.srv.HistoryHits(phoneA) > hits }, waitFor, tick)
	require.Eventually(t, func() bool {
		for _, c := range f.srv.CommandsOfType(frame.CmdSubscribeContact) {
			if c.Phone == phoneA {
				return true
			}
		}
		return false
	}, waitFor, tick)
	require.Eventually(t, func() bool { return len(f.srv.CommandsOfType(frame.CmdSubscribeSession)) >= 1 }, waitFor, tick)
}

func TestSelectionSurvivesRestart(t *testing.T) {
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	db := testDB(t)
	srv.SetHistoryByContact("7", model.Message{ID: "h1", Direction: model.Inbound, Body: "oi"})

	first := newEngine(t, srv, db, pairing.Options{})
	first.start(t)
	_, err := first.engine.Open(context.Background(), phoneA, "7")
	require.NoError(t, err)
	first.engine.Close()

	second := newEngine(t, srv, db, pairing.Options{})
	second.start(t)
	cur := second.engine.Selection().Current()
	assert.Equal(t, phoneA, cur.Phone)
	assert.Equal(t, "7", cur.ContactID)
	require.Eventually(t, func() bool { return len(second.thread(phoneA)) == 1 }, waitFor, tick)

	second.engine.Deselect()
	v, _ := db.GetState(store.KeyLastPhone)
	assert.Empty(t, v)
}

func TestHooksAfterCloseDoNoWork(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Open(context.Background(), phoneA, "")
	require.NoError(t, err)
	hits := f.srv.HistoryHits(phoneA)

	f.engine.Close()
	// A reconnect hook racing Close must neither block nor refetch.
	done := make(chan struct{})
	go func() {
		f.engine.onConnect(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("hook blocked after Close")
	}
	assert.Equal(t, hits, f.srv.HistoryHits(phoneA))

	_, err = f.engine.Open(context.Background(), phoneB, "")
	assert.ErrorIs(t, err, context.Canceled)
}
