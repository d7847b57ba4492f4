package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/talentpipe/inboxsync/internal/frame"
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.wsMu.Lock()
	s.conns[conn] = struct{}{}
	s.dials++
	clientID := fmt.Sprintf("c%d", s.dials)
	s.wsMu.Unlock()

	_ = s.write(conn, map[string]any{"type": frame.TypeConnectionEstablished, "clientId": clientID})

	defer func() {
		s.wsMu.Lock()
		delete(s.conns, conn)
		s.wsMu.Unlock()
		_ = conn.Close()
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd frame.Command
		if json.Unmarshal(data, &cmd) != nil {
			continue
		}
		s.wsMu.Lock()
		s.commands = append(s.commands, cmd)
		s.wsMu.Unlock()
	}
}

// write serialises writes; gorilla connections allow one concurrent writer.
func (s *Server) write(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Push sends a frame of the given type to every connected client. The
// payload fields are nested under "data".
func (s *Server) Push(typ string, payload any) error {
	return s.PushRaw(map[string]any{"type": typ, "data": payload})
}

// PushRaw sends any JSON value (or raw bytes) to every client.
func (s *Server) PushRaw(v any) error {
	var data []byte
	switch raw := v.(type) {
	case []byte:
		data = raw
	case string:
		data = []byte(raw)
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return err
		}
	}
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	var firstErr error
	for conn := range s.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DropConnections closes every client socket, simulating a transport fault.
func (s *Server) DropConnections() {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

// Connections returns the number of open push sockets.
func (s *Server) Connections() int {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return len(s.conns)
}

// Dials returns how many push sockets were accepted in total.
func (s *Server) Dials() int {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return s.dials
}

// Commands returns the commands received so far.
func (s *Server) Commands() []frame.Command {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return append([]frame.Command(nil), s.commands...)
}

// CommandsOfType filters Commands by type.
func (s *Server) CommandsOfType(typ string) []frame.Command {
	var out []frame.Command
	for _, c := range s.Commands() {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}
