package backendtest

import (
	"github.com/talentpipe/inboxsync/internal/backend"
	"github.com/talentpipe/inboxsync/internal/model"
)

// AddSession registers a session.
func (s *Server) AddSession(sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		s.sessionOrder = append(s.sessionOrder, sess.ID)
	}
	s.sessions[sess.ID] = sess
}

// ScriptStatus queues answers for the status endpoint of one session. Each
// poll consumes one; the last repeats. Use StatusNotFound for a 404.
func (s *Server) ScriptStatus(id string, answers ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusScript[id] = answers
}

// Polls returns how many times the status endpoint was hit for id.
func (s *Server) Polls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls[id]
}

// PushQROnConnect makes connect requests push a qr_code frame carrying code.
func (s *Server) PushQROnConnect(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qrOnConnect = code
}

// SetConversations replaces the traffic conversation list.
func (s *Server) SetConversations(c ...model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = c
}

// SetContacts replaces the CRM contact list.
func (s *Server) SetContacts(c ...model.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = c
}

// ListHits counts conversation and session list requests.
func (s *Server) ListHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listHits
}

// SetHistoryByPhone sets the history returned for a phone.
func (s *Server) SetHistoryByPhone(phone string, msgs ...model.Message) {
	s.setHistory("telefone:"+phone, msgs)
}

// SetHistoryByContact sets the history returned for a contact id.
func (s *Server) SetHistoryByContact(id string, msgs ...model.Message) {
	s.setHistory("candidato:"+id, msgs)
}

func (s *Server) setHistory(key string, msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[key] = msgs
}

// HoldHistoryByPhone blocks history answers for phone until release is called.
func (s *Server) HoldHistoryByPhone(phone string) (release func()) {
	return s.hold("telefone:" + phone)
}

// HoldHistoryByContact blocks history answers for a contact id.
func (s *Server) HoldHistoryByContact(id string) (release func()) {
	return s.hold("candidato:" + id)
}

func (s *Server) hold(key string) func() {
	gate := make(chan struct{})
	s.mu.Lock()
	s.historyGates[key] = gate
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.historyGates[key] == gate {
			delete(s.historyGates, key)
			close(gate)
		}
	}
}

// HistoryHits counts history requests for a phone.
func (s *Server) HistoryHits(phone string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyHits["telefone:"+phone]
}

// FailSends makes every send answer 502.
func (s *Server) FailSends(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendFail = fail
}

// AckViaPush makes sends answer 202 without a server id; the test then
// delivers the ack as a message_sent frame.
func (s *Server) AckViaPush(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ackViaPush = v
}

// Sends returns the recorded direct sends.
func (s *Server) Sends() []backend.SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.SendRequest(nil), s.sends...)
}

// TemplateSends returns the recorded template sends.
func (s *Server) TemplateSends() []backend.TemplateSendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.TemplateSendRequest(nil), s.templateSends...)
}

// AddTemplate stores a template.
func (s *Server) AddTemplate(t model.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
}

// Close releases held history requests, drops push sockets and stops the server.
func (s *Server) Close() {
	s.mu.Lock()
	for key, gate := range s.historyGates {
		close(gate)
		delete(s.historyGates, key)
	}
	s.mu.Unlock()
	s.DropConnections()
	s.Server.Close()
}
