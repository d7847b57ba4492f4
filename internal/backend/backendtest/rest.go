package backendtest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talentpipe/inboxsync/internal/backend"
	"github.com/talentpipe/inboxsync/internal/frame"
	"github.com/talentpipe/inboxsync/internal/model"
)

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.listHits++
	out := make([]model.Session, 0, len(s.sessionOrder))
	for _, id := range s.sessionOrder {
		out = append(out, s.sessions[id])
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Nome string `json:"nome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	sess := model.Session{ID: s.newID("sessao-"), Name: body.Nome, Status: model.SessionDisconnected}
	s.sessions[sess.ID] = sess
	s.sessionOrder = append(s.sessionOrder, sess.ID)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Nome string `json:"nome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		sess.Name = body.Nome
		s.sessions[id] = sess
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "sessão não encontrada", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	for i, v := range s.sessionOrder {
		if v == id {
			s.sessionOrder = append(s.sessionOrder[:i], s.sessionOrder[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "sessão não encontrada", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) connectSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	sess, ok := s.sessions[id]
	qr := s.qrOnConnect
	s.mu.Unlock()
	if !ok {
		http.Error(w, "sessão não encontrada", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sess)
	if qr != "" {
		_ = s.Push(frame.TypeQRCode, map[string]string{"sessionId": id, "qrCode": "aW1hZ2U=", "code": qr})
	}
}

func (s *Server) disconnectSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		sess.Status = model.SessionDisconnected
		s.sessions[id] = sess
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "sessão não encontrada", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionStatus pops the next scripted answer; the last one repeats.
func (s *Server) sessionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	s.polls[id]++
	script := s.statusScript[id]
	answer := ""
	if len(script) > 0 {
		answer = script[0]
		if len(script) > 1 {
			s.statusScript[id] = script[1:]
		}
	}
	sess, ok := s.sessions[id]
	if ok && answer != "" && answer != StatusNotFound {
		sess.Status = model.ParseSessionStatus(answer)
		s.sessions[id] = sess
	}
	s.mu.Unlock()

	if answer == StatusNotFound || (!ok && answer == "") {
		http.Error(w, "sessão não encontrada", http.StatusNotFound)
		return
	}
	if answer == "" {
		answer = string(sess.Status)
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "nome": sess.Name, "status": answer, "telefone": sess.Phone})
}

func (s *Server) listConversations(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.listHits++
	out := append([]model.Conversation(nil), s.conversations...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listContacts(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]model.Contact(nil), s.contacts...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// historyHandler serves history keyed "candidato:<id>" or "telefone:<phone>".
// A gate installed with HoldHistory blocks the answer until released.
func (s *Server) historyHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		param := "id"
		if kind == "telefone" {
			param = "phone"
		}
		key := kind + ":" + chi.URLParam(r, param)
		s.mu.Lock()
		s.historyHits[key]++
		gate := s.historyGates[key]
		s.mu.Unlock()
		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		s.mu.Lock()
		out := append([]model.Message{}, s.history[key]...)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) send(w http.ResponseWriter, r *http.Request) {
	var req backend.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.sends = append(s.sends, req)
	fail, viaPush := s.sendFail, s.ackViaPush
	id := s.newID("srv-")
	s.mu.Unlock()
	s.answerSend(w, fail, viaPush, id)
}

func (s *Server) sendTemplate(w http.ResponseWriter, r *http.Request) {
	var req backend.TemplateSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	_, known := s.templates[req.TemplateID]
	s.templateSends = append(s.templateSends, req)
	fail, viaPush := s.sendFail, s.ackViaPush
	id := s.newID("srv-")
	s.mu.Unlock()
	if !known {
		http.Error(w, "template não encontrado", http.StatusNotFound)
		return
	}
	s.answerSend(w, fail, viaPush, id)
}

func (s *Server) answerSend(w http.ResponseWriter, fail, viaPush bool, id string) {
	switch {
	case fail:
		http.Error(w, "falha ao enviar", http.StatusBadGateway)
	case viaPush:
		writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "mensagemId": id})
	}
}

func (s *Server) listTemplates(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]model.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	t, ok := s.templates[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "template não encontrado", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) saveTemplate(w http.ResponseWriter, r *http.Request) {
	var t model.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	if id := chi.URLParam(r, "id"); id != "" {
		t.ID = id
	} else if t.ID == "" {
		t.ID = s.newID("tpl-")
	}
	s.templates[t.ID] = t
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.templates, chi.URLParam(r, "id"))
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
