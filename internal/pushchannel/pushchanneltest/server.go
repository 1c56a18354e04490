// Package pushchanneltest provides an in-process Socket.IO server for
// tests of packages built on the push channel.
package pushchanneltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Server accepts websocket Socket.IO clients and lets tests push events
type Server struct {
	// Token, when set, must match the client's auth token
	Token string

	srv      *httptest.Server
	upgrader websocket.Upgrader
	attempts atomic.Int32

	mu    sync.Mutex
	conns []*websocket.Conn
}

// NewServer starts a server; Close it when done
func NewServer() *Server {
	s := &Server{upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL is the base URL clients connect to
func (s *Server) URL() string { return s.srv.URL }

// Close shuts the server down
func (s *Server) Close() {
	s.DropAll()
	s.srv.Close()
}

// Attempts counts handshakes received
func (s *Server) Attempts() int { return int(s.attempts.Load()) }

// Connections counts clients past the namespace handshake
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Emit sends an event to every connected client
func (s *Server) Emit(event string, payload any) error {
	args := []any{event, payload}
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	pkt := append([]byte("42"), data...)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.WriteMessage(websocket.TextMessage, pkt)
	}
	return nil
}

// DropAll closes every connection abruptly
func (s *Server) DropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/socket.io/") || r.URL.Query().Get("transport") != "websocket" {
		http.Error(w, "websocket only", http.StatusBadRequest)
		return
	}
	s.attempts.Add(1)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	open := `0{"sid":"test","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(open)); err != nil {
		return
	}
	_, p, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var auth struct {
		Token string `json:"token"`
	}
	if msg := string(p); strings.HasPrefix(msg, "40") && len(msg) > 2 {
		_ = json.Unmarshal([]byte(msg[2:]), &auth)
	}
	if s.Token != "" && auth.Token != s.Token {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`44{"message":"invalid token"}`))
		return
	}

	s.mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"socket"}`))
	if err == nil {
		s.conns = append(s.conns, conn)
	}
	s.mu.Unlock()
	if err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.remove(conn)
			return
		}
	}
}

func (s *Server) remove(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conns {
		if c == conn {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			return
		}
	}
}
