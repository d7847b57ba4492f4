// Package outbox sends messages optimistically: the message shows up at
// sending right away while the backend call runs in the background, and the
// attempt is journaled so failures can be listed and resent.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/talentpipe/inboxsync/internal/backend"
	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/model"
	"github.com/talentpipe/inboxsync/internal/store"
)

var (
	ErrEmptyBody = errors.New("outbox: empty message")
	ErrClosed    = errors.New("outbox: sender closed")
	ErrNotFailed = errors.New("outbox: entry has not failed")
	ErrNoJournal = errors.New("outbox: no journal configured")
)

// API is the REST side of a send.
type API interface {
	Send(ctx context.Context, req backend.SendRequest) (model.Ack, error)
	SendTemplate(ctx context.Context, req backend.TemplateSendRequest) (model.Ack, error)
	GetTemplate(ctx context.Context, id string) (model.Template, error)
}

// Thread is the part of the message store the sender drives.
type Thread interface {
	AddOptimistic(phone, contactID, body string) model.Message
	Confirm(tempID, serverID string) (model.Message, bool)
	Fail(tempID string) (model.Message, bool)
	Acknowledge(ack model.Ack) (model.Message, bool)
}

// Journal records every attempt. *store.DB implements it.
type Journal interface {
	QueueOutbox(e store.OutboxEntry) error
	MarkOutboxSent(clientID, serverID string) error
	MarkOutboxFailed(clientID, errMsg string) error
	MarkOutboxResent(clientID, newClientID string) error
	GetOutbox(clientID string) (store.OutboxEntry, error)
	FailedOutbox() ([]store.OutboxEntry, error)
	AbandonQueued(reason string) (int64, error)
}

// Failure is the payload of bus.MessageSendFailed.
type Failure struct {
	ClientID string
	Phone    string
	Error    string
}

// Sender runs sends against the backend.
type Sender struct {
	api     API
	thread  Thread
	journal Journal
	bus     *bus.Bus
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewSender creates a sender. journal may be nil.
func NewSender(api API, thread Thread, journal Journal, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sender{
		api:     api,
		thread:  thread,
		journal: journal,
		bus:     b,
		logger:  logger.With(zap.String("component", "outbox")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Recover fails journal entries left queued by a previous run.
func (s *Sender) Recover() {
	if s.journal == nil {
		return
	}
	n, err := s.journal.AbandonQueued("interrupted before the backend answered")
	if err != nil {
		s.logger.Error("failed to recover outbox", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Warn("abandoned interrupted sends", zap.Int64("count", n))
	}
}

// Send inserts the message at sending and posts it in the background.
func (s *Sender) Send(phone, contactID, body string) (model.Message, error) {
	if strings.TrimSpace(body) == "" {
		return model.Message{}, ErrEmptyBody
	}
	return s.start(store.OutboxEntry{Phone: phone, ContactID: contactID, Body: body})
}

// SendTemplate renders the template for the optimistic preview and posts it
// by template id. The template is fetched synchronously, so an unknown id
// fails before anything is inserted.
func (s *Sender) SendTemplate(ctx context.Context, phone, contactID, templateID string, vars map[string]string) (model.Message, error) {
	tpl, err := s.api.GetTemplate(ctx, templateID)
	if err != nil {
		return model.Message{}, fmt.Errorf("get template %s: %w", templateID, err)
	}
	return s.start(store.OutboxEntry{
		Phone:        phone,
		ContactID:    contactID,
		Body:         tpl.Render(vars),
		TemplateID:   templateID,
		TemplateVars: vars,
	})
}

func (s *Sender) start(e store.OutboxEntry) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Message{}, ErrClosed
	}

	msg := s.thread.AddOptimistic(e.Phone, e.ContactID, e.Body)
	e.ClientID = msg.ClientID
	e.Phone = msg.Phone
	if s.journal != nil {
		if err := s.journal.QueueOutbox(e); err != nil {
			s.logger.Error("failed to journal send", zap.Error(err), zap.String("client_id", e.ClientID))
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ack, err := s.post(e)
		s.settle(e, ack, err)
	}()
	return msg, nil
}

func (s *Sender) post(e store.OutboxEntry) (model.Ack, error) {
	if e.IsTemplate() {
		return s.api.SendTemplate(s.ctx, backend.TemplateSendRequest{
			Phone:      e.Phone,
			ContactID:  e.ContactID,
			TemplateID: e.TemplateID,
			Variables:  e.TemplateVars,
			ClientID:   e.ClientID,
		})
	}
	return s.api.Send(s.ctx, backend.SendRequest{
		Phone:     e.Phone,
		ContactID: e.ContactID,
		Body:      e.Body,
		ClientID:  e.ClientID,
	})
}

// settle applies the REST answer. A success without a server id leaves the
// message at sending; the message_sent push will confirm it.
func (s *Sender) settle(e store.OutboxEntry, ack model.Ack, err error) {
	switch {
	case err != nil:
		s.fail(e, err.Error())
	case !ack.Success:
		reason := ack.Error
		if reason == "" {
			reason = "rejected by backend"
		}
		s.fail(e, reason)
	case ack.ServerID != "":
		s.thread.Confirm(e.ClientID, ack.ServerID)
		s.markSent(e.ClientID, ack.ServerID)
		s.logger.Info("message sent", zap.String("client_id", e.ClientID), zap.String("server_id", ack.ServerID))
	default:
		s.markSent(e.ClientID, "")
		s.logger.Debug("send accepted, waiting for push ack", zap.String("client_id", e.ClientID))
	}
}

// Acknowledge applies a message_sent push and keeps the journal in step.
func (s *Sender) Acknowledge(ack model.Ack) (model.Message, bool) {
	msg, ok := s.thread.Acknowledge(ack)
	if !ok || msg.ClientID == "" {
		return msg, ok
	}
	if msg.Status == model.StatusError {
		s.markFailed(msg.ClientID, ack.Error)
		s.bus.Emit(bus.MessageSendFailed, Failure{ClientID: msg.ClientID, Phone: msg.Phone, Error: ack.Error})
	} else {
		s.markSent(msg.ClientID, msg.ID)
	}
	return msg, ok
}

func (s *Sender) fail(e store.OutboxEntry, reason string) {
	s.thread.Fail(e.ClientID)
	s.markFailed(e.ClientID, reason)
	s.logger.Error("failed to send message", zap.String("client_id", e.ClientID), zap.String("phone", e.Phone), zap.String("error", reason))
	s.bus.Emit(bus.MessageSendFailed, Failure{ClientID: e.ClientID, Phone: e.Phone, Error: reason})
}

func (s *Sender) markSent(clientID, serverID string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.MarkOutboxSent(clientID, serverID); err != nil {
		s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_id", clientID))
	}
}

func (s *Sender) markFailed(clientID, reason string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.MarkOutboxFailed(clientID, reason); err != nil {
		s.logger.Error("failed to mark failed", zap.Error(err), zap.String("client_id", clientID))
	}
}

// Failed lists journaled sends that failed and were not retried.
func (s *Sender) Failed() ([]store.OutboxEntry, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.FailedOutbox()
}

// Resend posts a failed entry again as a new message. The failed message
// stays in its thread.
func (s *Sender) Resend(clientID string) (model.Message, error) {
	if s.journal == nil {
		return model.Message{}, ErrNoJournal
	}
	old, err := s.journal.GetOutbox(clientID)
	if err != nil {
		return model.Message{}, fmt.Errorf("resend %s: %w", clientID, err)
	}
	if old.Status != store.OutboxFailed || old.ResentAs != "" {
		return model.Message{}, ErrNotFailed
	}
	msg, err := s.start(store.OutboxEntry{
		Phone:        old.Phone,
		ContactID:    old.ContactID,
		Body:         old.Body,
		TemplateID:   old.TemplateID,
		TemplateVars: old.TemplateVars,
	})
	if err != nil {
		return msg, err
	}
	if err := s.journal.MarkOutboxResent(clientID, msg.ClientID); err != nil {
		s.logger.Error("failed to link resend", zap.Error(err), zap.String("client_id", clientID))
	}
	return msg, nil
}

// Close cancels in-flight sends and waits for them to settle.
func (s *Sender) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
