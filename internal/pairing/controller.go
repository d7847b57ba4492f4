package pairing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/frame"
	"github.com/talentpipe/inboxsync/internal/model"
)

// API is the REST side of session management.
type API interface {
	ListSessions(ctx context.Context) ([]model.Session, error)
	CreateSession(ctx context.Context, name string) (model.Session, error)
	UpdateSession(ctx context.Context, id, name string) (model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	ConnectSession(ctx context.Context, id string) (model.Session, error)
	DisconnectSession(ctx context.Context, id string) error
	SessionStatus(ctx context.Context, id string) (model.Session, error)
}

// Commander writes push-channel commands.
type Commander interface {
	Send(cmd frame.Command) error
}

// Options configure a Controller.
type Options struct {
	AccountID string
	UserID    string
	// Sessions are subscribed on every (re)connection even before the
	// first list refresh.
	Sessions                []string
	GraceDelay              time.Duration
	Interval                time.Duration
	MaxElapsed              time.Duration
	DisconnectConfirmations int
}

type account struct {
	session model.Session
	state   model.SessionStatus
	rawCode string
	pairing bool
	poll    *pollHandle
}

type pollHandle struct {
	cancel context.CancelFunc
}

// Controller tracks every messaging account of the profile.
type Controller struct {
	api    API
	ch     Commander
	bus    *bus.Bus
	logger *zap.Logger
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	accounts map[string]*account
	order    []string
	latest   string // session of the most recent Connect
	closed   bool
}

// New creates a controller. Zero durations fall back to 5s grace, 3s
// interval and 60s overall timeout.
func New(api API, ch Commander, b *bus.Bus, logger *zap.Logger, opts Options) *Controller {
	if opts.GraceDelay < 0 {
		opts.GraceDelay = 0
	} else if opts.GraceDelay == 0 {
		opts.GraceDelay = 5 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Second
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = 60 * time.Second
	}
	if opts.DisconnectConfirmations <= 0 {
		opts.DisconnectConfirmations = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		api:      api,
		ch:       ch,
		bus:      b,
		logger:   logger.With(zap.String("component", "pairing")),
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		accounts: make(map[string]*account),
	}
}

// State returns the local pairing state of a session.
func (c *Controller) State(id string) model.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a := c.accounts[id]; a != nil {
		return a.state
	}
	return model.SessionDisconnected
}

// Sessions returns every known session in registry order.
func (c *Controller) Sessions() []View {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]View, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.viewLocked(c.accounts[id]))
	}
	return out
}

// Session returns one session.
func (c *Controller) Session(id string) (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.accounts[id]
	if a == nil {
		return View{}, false
	}
	return c.viewLocked(a), true
}

func (c *Controller) viewLocked(a *account) View {
	s := a.session
	s.Status = a.state
	return View{Session: s, RawCode: a.rawCode, Pairing: a.pairing, Polling: a.poll != nil}
}

func (c *Controller) ensureLocked(id string) *account {
	a := c.accounts[id]
	if a == nil {
		a = &account{session: model.Session{ID: id}, state: model.SessionDisconnected}
		c.accounts[id] = a
		c.order = append(c.order, id)
	}
	return a
}

// Refresh reloads the session list from REST. Name and phone always follow
// the backend. The backend status seeds sessions seen for the first time;
// after that the local state only moves through transitions.
func (c *Controller) Refresh(ctx context.Context) error {
	list, err := c.api.ListSessions(ctx)
	if err != nil {
		c.logger.Warn("session list refresh failed", zap.Error(err))
		return fmt.Errorf("list sessions: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		seen[s.ID] = true
		_, existed := c.accounts[s.ID]
		a := c.ensureLocked(s.ID)
		code := a.session.PairingCode
		a.session = s
		a.session.PairingCode = code
		if !existed && s.Status.Known() && s.Status != model.SessionAwaitingCode {
			a.state = s.Status
		}
	}
	for _, id := range append([]string(nil), c.order...) {
		if !seen[id] {
			c.removeLocked(id)
		}
	}
	c.mu.Unlock()

	c.bus.Emit(bus.SessionsUpdated, len(list))
	return nil
}

// Create registers a new session.
func (c *Controller) Create(ctx context.Context, name string) (View, error) {
	s, err := c.api.CreateSession(ctx, name)
	if err != nil {
		return View{}, fmt.Errorf("create session: %w", err)
	}
	c.mu.Lock()
	a := c.ensureLocked(s.ID)
	a.session = s
	v := c.viewLocked(a)
	c.mu.Unlock()
	c.bus.Emit(bus.SessionsUpdated, s.ID)
	if err := c.ch.Send(frame.SubscribeSession(s.ID, c.opts.AccountID, c.opts.UserID)); err != nil {
		c.logger.Debug("subscribe after create deferred to reconnect", zap.Error(err))
	}
	return v, nil
}

// Rename changes the display name of a session.
func (c *Controller) Rename(ctx context.Context, id, name string) (View, error) {
	s, err := c.api.UpdateSession(ctx, id, name)
	if err != nil {
		return View{}, fmt.Errorf("rename session: %w", err)
	}
	c.mu.Lock()
	a := c.ensureLocked(id)
	a.session.Name = s.Name
	v := c.viewLocked(a)
	c.mu.Unlock()
	c.bus.Emit(bus.SessionsUpdated, id)
	return v, nil
}

// Delete removes a session and stops any poll for it.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	c.stopPollLocked(id)
	c.mu.Unlock()
	if err := c.api.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	c.mu.Lock()
	c.removeLocked(id)
	c.mu.Unlock()
	c.bus.Emit(bus.SessionsUpdated, id)
	return nil
}

func (c *Controller) removeLocked(id string) {
	c.stopPollLocked(id)
	delete(c.accounts, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
}

// Subscribe sends subscribe_session for every known and configured session.
// Used after each push-channel (re)connection.
func (c *Controller) Subscribe() error {
	c.mu.Lock()
	ids := append([]string(nil), c.order...)
	c.mu.Unlock()
	seen := make(map[string]bool)
	var errs []error
	for _, id := range append(append([]string(nil), c.opts.Sessions...), ids...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if err := c.ch.Send(frame.SubscribeSession(id, c.opts.AccountID, c.opts.UserID)); err != nil {
			errs = append(errs, fmt.Errorf("subscribe %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Connect starts pairing: REST connect, subscribe and request a code over
// the push channel, open the pairing view and start the polling fallback.
func (c *Controller) Connect(ctx context.Context, id string) error {
	s, err := c.api.ConnectSession(ctx, id)
	if err != nil {
		return fmt.Errorf("connect session: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return context.Canceled
	}
	a := c.ensureLocked(id)
	if s.Name != "" {
		a.session.Name = s.Name
	}
	// A new attempt starts from disconnected; error only leaves that way.
	var events []bus.Event
	if a.state == model.SessionError {
		if evt, err := c.transitionLocked(id, a, model.SessionDisconnected); err == nil {
			events = append(events, evt)
		}
	}
	if s.Status == model.SessionConnected {
		if evt, err := c.transitionLocked(id, a, model.SessionConnected); err == nil {
			events = append(events, evt)
		}
		c.mu.Unlock()
		c.publish(events...)
		return nil
	}
	a.pairing = true
	c.latest = id
	c.startPollLocked(id, a)
	c.mu.Unlock()
	c.publish(events...)
	c.logger.Info("pairing started", zap.String("session_id", id))

	if s.PairingCode != "" {
		c.HandleCode(Code{SessionID: id, Image: s.PairingCode})
	}
	if err := c.ch.Send(frame.SubscribeSession(id, c.opts.AccountID, c.opts.UserID)); err != nil {
		c.logger.Warn("subscribe_session not sent, relying on polling", zap.Error(err))
		return nil
	}
	if err := c.ch.Send(frame.GetQRCode(id)); err != nil {
		c.logger.Warn("get_qr_code not sent, relying on polling", zap.Error(err))
	}
	return nil
}

// HandleCode applies a pairing code frame. Codes for sessions whose pairing
// view is closed are ignored so a late frame cannot reopen it.
func (c *Controller) HandleCode(code Code) {
	c.mu.Lock()
	id := code.SessionID
	if id == "" {
		id = c.latest
	}
	a := c.accounts[id]
	if a == nil || !a.pairing {
		c.mu.Unlock()
		c.logger.Debug("ignoring pairing code", zap.String("session_id", id))
		return
	}
	evt, err := c.transitionLocked(id, a, model.SessionAwaitingCode)
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("pairing code rejected", zap.String("session_id", id), zap.Error(err))
		return
	}
	a.session.PairingCode = code.Image
	a.rawCode = code.Raw
	c.mu.Unlock()

	code.SessionID = id
	c.publish(evt, bus.NewEvent(bus.PairingCode, code))
}

// HandleStatus applies a session_status frame. A terminal status cancels the
// session's poll immediately; the push is authoritative over the next tick.
func (c *Controller) HandleStatus(s model.Session) {
	if s.ID == "" {
		return
	}
	var events []bus.Event
	c.mu.Lock()
	a := c.ensureLocked(s.ID)
	if s.Name != "" {
		a.session.Name = s.Name
	}
	if s.Phone != "" {
		a.session.Phone = s.Phone
	}
	switch s.Status {
	case model.SessionConnected, model.SessionDisconnected, model.SessionError:
		c.stopPollLocked(s.ID)
		if evt, err := c.transitionLocked(s.ID, a, s.Status); err == nil {
			events = append(events, evt)
		} else if s.Status != a.state {
			c.logger.Warn("status push rejected", zap.String("session_id", s.ID), zap.Error(err))
		}
		if a.pairing {
			a.pairing = false
			a.rawCode = ""
			events = append(events, bus.NewEvent(bus.PairingDismissed, s.ID))
		}
		c.mu.Unlock()
		c.publish(events...)
		return
	}
	c.mu.Unlock()
	if s.Status == model.SessionAwaitingCode && s.PairingCode != "" {
		c.HandleCode(Code{SessionID: s.ID, Image: s.PairingCode})
	}
}

// Dismiss closes the pairing view and cancels the poll. A session still
// waiting for its code goes back to disconnected.
func (c *Controller) Dismiss(id string) {
	var events []bus.Event
	c.mu.Lock()
	a := c.accounts[id]
	if a == nil {
		c.mu.Unlock()
		return
	}
	c.stopPollLocked(id)
	wasOpen := a.pairing
	a.pairing = false
	a.rawCode = ""
	if a.state == model.SessionAwaitingCode {
		if evt, err := c.transitionLocked(id, a, model.SessionDisconnected); err == nil {
			events = append(events, evt)
		}
	}
	c.mu.Unlock()
	if wasOpen {
		events = append(events, bus.NewEvent(bus.PairingDismissed, id))
	}
	c.publish(events...)
}

// Disconnect logs the account out and returns it to disconnected.
func (c *Controller) Disconnect(ctx context.Context, id string) error {
	c.Dismiss(id)
	if err := c.api.DisconnectSession(ctx, id); err != nil {
		return fmt.Errorf("disconnect session: %w", err)
	}
	c.mu.Lock()
	a := c.ensureLocked(id)
	evt, err := c.transitionLocked(id, a, model.SessionDisconnected)
	c.mu.Unlock()
	if err == nil {
		c.publish(evt)
	}
	return nil
}

// Close cancels every poll and waits for background work to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	for id := range c.accounts {
		c.stopPollLocked(id)
	}
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

// transitionLocked moves a to the new state. A same-state move other than a
// code refresh is an error so callers can tell nothing happened. Every
// successful move schedules a session list refresh.
func (c *Controller) transitionLocked(id string, a *account, to model.SessionStatus) (bus.Event, error) {
	if err := checkTransition(a.state, to); err != nil {
		return bus.Event{}, err
	}
	from := a.state
	a.state = to
	if to != model.SessionAwaitingCode {
		a.session.PairingCode = ""
	}
	c.logger.Info("pairing state changed", zap.String("session_id", id),
		zap.String("from", string(from)), zap.String("to", string(to)))
	c.scheduleRefreshLocked()
	return bus.NewEvent(bus.PairingStateChanged, Change{SessionID: id, From: from, To: to}), nil
}

func (c *Controller) scheduleRefreshLocked() {
	if c.closed {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.Refresh(c.ctx)
	}()
}

func (c *Controller) publish(events ...bus.Event) {
	for _, evt := range events {
		c.bus.Publish(evt)
	}
}
