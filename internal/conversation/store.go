// Package conversation keeps the message threads of the open and recently
// touched conversations and reconciles the three sources that feed them:
// history fetches, optimistic sends and pushed frames.
package conversation

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/model"
	"github.com/talentpipe/inboxsync/internal/phone"
)

// Update is the payload of messages.updated events.
type Update struct {
	Phone     string
	MessageID string
}

// Store holds threads keyed by phone plus a global id index, so an ack or
// status update finds its message even when another conversation is open.
type Store struct {
	mu       sync.Mutex
	threads  map[string][]*model.Message
	byID     map[string]*model.Message
	byClient map[string]*model.Message
	pending  []*model.Message // outbound sends awaiting a server id, oldest first

	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time
}

// New creates an empty store.
func New(b *bus.Bus, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		threads:  make(map[string][]*model.Message),
		byID:     make(map[string]*model.Message),
		byClient: make(map[string]*model.Message),
		bus:      b,
		logger:   logger.With(zap.String("component", "conversation")),
		now:      time.Now,
	}
}

// Messages returns a copy of the thread for phone in arrival order.
func (s *Store) Messages(rawPhone string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread := s.threads[phone.Normalize(rawPhone)]
	out := make([]model.Message, len(thread))
	for i, m := range thread {
		out[i] = *m
	}
	return out
}

// Get looks a message up by server id, temporary id or client id.
func (s *Store) Get(id string) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.lookup(id)
	if m == nil {
		return model.Message{}, false
	}
	return *m, true
}

// Replace reconciles a thread with a history result. Local sends the server
// has not confirmed survive and are appended after the result.
func (s *Store) Replace(rawPhone string, history []model.Message) {
	p := phone.Normalize(rawPhone)

	s.mu.Lock()
	old := s.threads[p]
	thread := make([]*model.Message, 0, len(history)+2)
	seen := make(map[string]bool, len(history))
	for i := range history {
		m := history[i]
		if m.ID != "" {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
		}
		if m.Phone == "" {
			m.Phone = p
		}
		if m.Direction == model.Inbound {
			m.Status = model.StatusReceived
		}
		thread = append(thread, &m)
	}

	var kept []*model.Message
	for _, m := range old {
		if !m.Unconfirmed() {
			s.unindex(m)
			continue
		}
		if m.ClientID != "" && s.historyHasClient(thread, m.ClientID) {
			s.unindex(m)
			continue
		}
		kept = append(kept, m)
	}
	thread = append(thread, kept...)
	s.threads[p] = thread
	for _, m := range thread {
		s.index(m)
	}
	s.mu.Unlock()

	s.logger.Debug("thread replaced", zap.String("phone", p),
		zap.Int("history", len(history)), zap.Int("kept_local", len(kept)))
	s.publish(p, "")
}

func (s *Store) historyHasClient(thread []*model.Message, clientID string) bool {
	for _, m := range thread {
		if m.ClientID == clientID {
			return true
		}
	}
	return false
}

// AppendInbound appends a pushed inbound message at received. Returns false
// if a message with the same id is already stored.
func (s *Store) AppendInbound(msg model.Message) bool {
	msg.Phone = phone.Normalize(msg.Phone)
	msg.Direction = model.Inbound
	msg.Status = model.StatusReceived
	if msg.SentAt.IsZero() {
		msg.SentAt = s.now()
	}

	s.mu.Lock()
	if msg.ID != "" && s.byID[msg.ID] != nil {
		s.mu.Unlock()
		return false
	}
	m := &msg
	s.threads[msg.Phone] = append(s.threads[msg.Phone], m)
	s.index(m)
	s.mu.Unlock()

	s.publish(msg.Phone, msg.ID)
	return true
}

// AddOptimistic appends an outbound message at sending with a temporary id.
func (s *Store) AddOptimistic(rawPhone, contactID, body string) model.Message {
	id := model.NewTempID()
	m := &model.Message{
		ID:        id,
		ClientID:  id,
		Phone:     phone.Normalize(rawPhone),
		ContactID: contactID,
		Direction: model.Outbound,
		Body:      body,
		Status:    model.StatusSending,
		SentAt:    s.now(),
	}

	s.mu.Lock()
	s.threads[m.Phone] = append(s.threads[m.Phone], m)
	s.index(m)
	s.pending = append(s.pending, m)
	out := *m
	s.mu.Unlock()

	s.publish(out.Phone, out.ID)
	return out
}

// Confirm swaps the temporary id for the server id and advances to sent.
func (s *Store) Confirm(tempID, serverID string) (model.Message, bool) {
	s.mu.Lock()
	m := s.lookup(tempID)
	if m == nil {
		s.mu.Unlock()
		return model.Message{}, false
	}
	m = s.confirm(m, serverID)
	out := *m
	s.mu.Unlock()

	s.publish(out.Phone, out.ID)
	return out, true
}

// confirm must be called with mu held. If the server id already belongs to
// another entry (history arrived first) the local copy is dropped.
func (s *Store) confirm(m *model.Message, serverID string) *model.Message {
	s.removePending(m)
	if serverID != "" && m.ID != serverID {
		if other := s.byID[serverID]; other != nil && other != m {
			s.drop(m)
			if other.ClientID == "" {
				other.ClientID = m.ClientID
				s.byClient[m.ClientID] = other
			}
			advance(other, model.StatusSent)
			return other
		}
		if s.byID[m.ID] == m {
			delete(s.byID, m.ID)
		}
		m.ID = serverID
		s.byID[serverID] = m
	}
	advance(m, model.StatusSent)
	return m
}

// Fail marks a send as error. The message stays in its thread.
func (s *Store) Fail(tempID string) (model.Message, bool) {
	s.mu.Lock()
	m := s.lookup(tempID)
	if m == nil {
		s.mu.Unlock()
		return model.Message{}, false
	}
	s.removePending(m)
	advance(m, model.StatusError)
	out := *m
	s.mu.Unlock()

	s.publish(out.Phone, out.ID)
	return out, true
}

// Acknowledge applies a message_sent ack. The target is found by client id,
// then by server id. Only a successful ack for an unknown server id falls
// back to the oldest send still waiting for an id; a failure must name its
// message, since it may belong to another client.
func (s *Store) Acknowledge(ack model.Ack) (model.Message, bool) {
	s.mu.Lock()
	var m *model.Message
	if ack.ClientID != "" {
		m = s.byClient[ack.ClientID]
	}
	if m == nil && ack.ServerID != "" {
		m = s.byID[ack.ServerID]
	}
	if m == nil && ack.Success && len(s.pending) > 0 {
		m = s.pending[0]
	}
	if m == nil || m.Direction != model.Outbound {
		s.mu.Unlock()
		return model.Message{}, false
	}
	if ack.Success {
		m = s.confirm(m, ack.ServerID)
	} else {
		s.removePending(m)
		advance(m, model.StatusError)
	}
	out := *m
	s.mu.Unlock()

	s.publish(out.Phone, out.ID)
	return out, true
}

// UpdateStatus advances the status of an outbound message. Body, direction
// and time are never touched, inbound messages never change, and a status
// that does not move forward is ignored.
func (s *Store) UpdateStatus(id string, status model.MessageStatus) bool {
	s.mu.Lock()
	m := s.byID[id]
	if m == nil || m.Direction != model.Outbound || !m.Status.Advances(status) {
		s.mu.Unlock()
		return false
	}
	if status != model.StatusError {
		s.removePending(m)
	}
	m.Status = status
	p := m.Phone
	s.mu.Unlock()

	s.publish(p, id)
	return true
}

// Pending returns the sends still waiting for a server id, oldest first.
func (s *Store) Pending() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.pending))
	for i, m := range s.pending {
		out[i] = *m
	}
	return out
}

func advance(m *model.Message, status model.MessageStatus) {
	if m.Status.Advances(status) {
		m.Status = status
	}
}

func (s *Store) lookup(id string) *model.Message {
	if m := s.byID[id]; m != nil {
		return m
	}
	return s.byClient[id]
}

func (s *Store) index(m *model.Message) {
	if m.ID != "" {
		s.byID[m.ID] = m
	}
	if m.ClientID != "" {
		s.byClient[m.ClientID] = m
	}
}

func (s *Store) unindex(m *model.Message) {
	if m.ID != "" && s.byID[m.ID] == m {
		delete(s.byID, m.ID)
	}
	if m.ClientID != "" && s.byClient[m.ClientID] == m {
		delete(s.byClient, m.ClientID)
	}
	s.removePending(m)
}

// drop removes m from its thread and the indexes.
func (s *Store) drop(m *model.Message) {
	s.unindex(m)
	thread := s.threads[m.Phone]
	for i, x := range thread {
		if x == m {
			s.threads[m.Phone] = append(thread[:i:i], thread[i+1:]...)
			return
		}
	}
}

func (s *Store) removePending(m *model.Message) {
	for i, x := range s.pending {
		if x == m {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			return
		}
	}
}

func (s *Store) publish(p, id string) {
	s.bus.Emit(bus.MessagesUpdated, Update{Phone: p, MessageID: id})
}
