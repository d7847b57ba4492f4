// Package backendtest runs an in-memory recruitment backend for tests: the
// REST endpoints on a chi router and the push channel on a websocket.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/talentpipe/inboxsync/internal/backend"
	"github.com/talentpipe/inboxsync/internal/frame"
	"github.com/talentpipe/inboxsync/internal/model"
)

// StatusNotFound scripts a 404 answer in ScriptStatus.
const StatusNotFound = "404"

// Server is a fake backend. All setters are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	sessions      map[string]model.Session
	sessionOrder  []string
	statusScript  map[string][]string
	polls         map[string]int
	conversations []model.Conversation
	contacts      []model.Contact
	history       map[string][]model.Message
	historyGates  map[string]chan struct{}
	historyHits   map[string]int
	templates     map[string]model.Template
	sends         []backend.SendRequest
	templateSends []backend.TemplateSendRequest
	sendFail      bool
	ackViaPush    bool
	nextID        int
	listHits      int
	qrOnConnect   string

	wsMu     sync.Mutex
	conns    map[*websocket.Conn]struct{}
	commands []frame.Command
	dials    int
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// New starts a fake backend. It is closed by t.Cleanup-style callers via Close.
func New() *Server {
	s := &Server{
		sessions:     make(map[string]model.Session),
		statusScript: make(map[string][]string),
		polls:        make(map[string]int),
		history:      make(map[string][]model.Message),
		historyGates: make(map[string]chan struct{}),
		historyHits:  make(map[string]int),
		templates:    make(map[string]model.Template),
		conns:        make(map[*websocket.Conn]struct{}),
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)

	r.Route("/whatsapp/sessoes", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)
		r.Put("/{id}", s.updateSession)
		r.Delete("/{id}", s.deleteSession)
		r.Post("/{id}/conectar", s.connectSession)
		r.Post("/{id}/desconectar", s.disconnectSession)
		r.Get("/{id}/status", s.sessionStatus)
	})
	r.Get("/whatsapp/conversas", s.listConversations)
	r.Get("/candidatos", s.listContacts)
	r.Route("/whatsapp/mensagens", func(r chi.Router) {
		r.Post("/", s.send)
		r.Post("/template", s.sendTemplate)
		r.Get("/candidato/{id}", s.historyHandler("candidato"))
		r.Get("/telefone/{phone}", s.historyHandler("telefone"))
	})
	r.Route("/whatsapp/templates", func(r chi.Router) {
		r.Get("/", s.listTemplates)
		r.Post("/", s.saveTemplate)
		r.Get("/{id}", s.getTemplate)
		r.Put("/{id}", s.saveTemplate)
		r.Delete("/{id}", s.deleteTemplate)
	})
	return r
}

// WSURL returns the push-channel URL.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s%d", prefix, s.nextID)
}
