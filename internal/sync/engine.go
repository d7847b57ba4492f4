// Package sync owns the synchronizer for the lifetime of one daemon: the
// push channel, the selection, the message store, the conversation list,
// the pairing controller and the outbox. Frame handlers are registered once
// and read the selection when a frame is dispatched.
package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/talentpipe/inboxsync/internal/backend"
	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/channel"
	"github.com/talentpipe/inboxsync/internal/conversation"
	"github.com/talentpipe/inboxsync/internal/directory"
	"github.com/talentpipe/inboxsync/internal/frame"
	"github.com/talentpipe/inboxsync/internal/model"
	"github.com/talentpipe/inboxsync/internal/outbox"
	"github.com/talentpipe/inboxsync/internal/pairing"
	"github.com/talentpipe/inboxsync/internal/selection"
	"github.com/talentpipe/inboxsync/internal/store"
)

var (
	ErrNoSelection = errors.New("no conversation selected")
	ErrNoPhone     = errors.New("conversation needs a phone number")
	ErrSuperseded  = errors.New("selection changed before history arrived")
)

// Backend is every REST call the engine and its components make.
// *backend.Client implements it.
type Backend interface {
	pairing.API
	directory.Source
	outbox.API
	HistoryByContact(ctx context.Context, contactID string) ([]model.Message, error)
	HistoryByPhone(ctx context.Context, phone string) ([]model.Message, error)
	ListTemplates(ctx context.Context) ([]model.Template, error)
}

// Channel is the push connection. *channel.Conn implements it.
type Channel interface {
	Handle(typ string, h channel.Handler)
	OnConnect(fn func(ctx context.Context))
	Connected() bool
	ClientID() string
	Send(cmd frame.Command) error
	Start(ctx context.Context)
	Close() error
}

// Deps are the engine's collaborators. Journal may be nil.
type Deps struct {
	Backend           Backend
	Channel           Channel
	Journal           *store.DB
	Bus               *bus.Bus
	Logger            *zap.Logger
	Pairing           pairing.Options
	DirectoryDebounce time.Duration
}

// Status is a point-in-time summary for the control API.
type Status struct {
	Connected bool
	ClientID  string
	Selection selection.Selection
	Pending   int
}

// Engine is the owner object of the synchronizer.
type Engine struct {
	api     Backend
	ch      Channel
	journal *store.DB
	bus     *bus.Bus
	logger  *zap.Logger

	sel     *selection.Authority
	msgs    *conversation.Store
	dir     *directory.Aggregator
	pairing *pairing.Controller
	outbox  *outbox.Sender

	ctx       context.Context
	cancel    context.CancelFunc
	wg        stdsync.WaitGroup
	closeOnce stdsync.Once

	workMu stdsync.Mutex // guards closed and wg.Add against Close
	closed bool
}

// New builds the engine and registers its frame handlers. Nothing runs
// until Start.
func New(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.DirectoryDebounce <= 0 {
		d.DirectoryDebounce = 300 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		api:     d.Backend,
		ch:      d.Channel,
		journal: d.Journal,
		bus:     d.Bus,
		logger:  logger.With(zap.String("component", "engine")),
		sel:     selection.New(d.Bus),
		msgs:    conversation.New(d.Bus, logger),
		dir:     directory.New(d.Backend, d.Bus, logger, d.DirectoryDebounce),
		pairing: pairing.New(d.Backend, d.Channel, d.Bus, logger, d.Pairing),
		ctx:     ctx,
		cancel:  cancel,
	}
	var journal outbox.Journal
	if d.Journal != nil {
		journal = d.Journal
		e.dir.UseCache(d.Journal)
	}
	e.outbox = outbox.NewSender(d.Backend, e.msgs, journal, d.Bus, logger)
	e.register()
	return e
}

// Start recovers the journal, restores the last selection, loads sessions
// and the conversation list, and connects the push channel.
func (e *Engine) Start(ctx context.Context) {
	e.outbox.Recover()
	if err := e.pairing.Refresh(ctx); err != nil {
		e.logger.Warn("initial session list failed", zap.Error(err))
	}
	e.dir.Trigger()
	e.restoreSelection()
	e.ch.Start(e.ctx)
}

// Close tears everything down: the channel, polls, timers, in-flight sends
// and history fetches.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.workMu.Lock()
		e.closed = true
		e.workMu.Unlock()
		e.cancel()
		if err := e.ch.Close(); err != nil {
			e.logger.Debug("channel close", zap.Error(err))
		}
		e.pairing.Close()
		e.dir.Close()
		e.outbox.Close()
		e.wg.Wait()
	})
}

func (e *Engine) Selection() *selection.Authority { return e.sel }
func (e *Engine) Messages() *conversation.Store   { return e.msgs }
func (e *Engine) Directory() *directory.Aggregator { return e.dir }
func (e *Engine) Pairing() *pairing.Controller     { return e.pairing }
func (e *Engine) Outbox() *outbox.Sender           { return e.outbox }
func (e *Engine) Bus() *bus.Bus                    { return e.bus }

// Status reports connectivity and the current selection.
func (e *Engine) Status() Status {
	return Status{
		Connected: e.ch.Connected(),
		ClientID:  e.ch.ClientID(),
		Selection: e.sel.Current(),
		Pending:   len(e.msgs.Pending()),
	}
}

// Send posts body to the selected conversation.
func (e *Engine) Send(body string) (model.Message, error) {
	cur, err := e.sendable()
	if err != nil {
		return model.Message{}, err
	}
	return e.outbox.Send(cur.Phone, cur.ContactID, body)
}

// SendTemplate posts a template to the selected conversation.
func (e *Engine) SendTemplate(ctx context.Context, templateID string, vars map[string]string) (model.Message, error) {
	cur, err := e.sendable()
	if err != nil {
		return model.Message{}, err
	}
	return e.outbox.SendTemplate(ctx, cur.Phone, cur.ContactID, templateID, vars)
}

// Resend retries a failed send as a new message.
func (e *Engine) Resend(clientID string) (model.Message, error) {
	if !e.ch.Connected() {
		return model.Message{}, channel.ErrNotConnected
	}
	return e.outbox.Resend(clientID)
}

// Templates lists the backend's message templates.
func (e *Engine) Templates(ctx context.Context) ([]model.Template, error) {
	return e.api.ListTemplates(ctx)
}

// sendable returns the selection if sending is possible right now.
func (e *Engine) sendable() (selection.Selection, error) {
	cur := e.sel.Current()
	if cur.Phone == "" {
		return cur, ErrNoSelection
	}
	if !e.ch.Connected() {
		return cur, channel.ErrNotConnected
	}
	return cur, nil
}

// track registers one unit of background work, or reports false once Close
// has begun.
func (e *Engine) track() bool {
	e.workMu.Lock()
	defer e.workMu.Unlock()
	if e.closed {
		return false
	}
	e.wg.Add(1)
	return true
}

// onConnect runs after every (re)connection of the push channel. The
// channel starts it on its own goroutine, so it is tracked here.
func (e *Engine) onConnect(ctx context.Context) {
	if !e.track() {
		return
	}
	defer e.wg.Done()

	if err := e.pairing.Subscribe(); err != nil {
		e.logger.Warn("session resubscribe incomplete", zap.Error(err))
	}
	cur := e.sel.Current()
	if cur.Phone != "" {
		e.subscribe(cur)
		e.logger.Info("refetching selected conversation", zap.String("phone", cur.Phone))
		if _, err := e.fetch(ctx, selection.Token(cur)); err != nil && !errors.Is(err, ErrSuperseded) {
			e.logger.Debug("refetch", zap.Error(err))
		}
	}
	e.dir.Trigger()
}

func (e *Engine) subscribe(cur selection.Selection) {
	if err := e.ch.Send(frame.SubscribeContact(cur.ContactID, cur.Phone)); err != nil {
		e.logger.Debug("subscribe_candidato deferred to reconnect", zap.Error(err))
	}
}

// ensure *backend.Client and *channel.Conn satisfy the engine's interfaces.
var (
	_ Backend = (*backend.Client)(nil)
	_ Channel = (*channel.Conn)(nil)
)
