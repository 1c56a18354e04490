package pushchannel

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeServer is a minimal Socket.IO server supporting both transports
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	token            string
	rejectWebsocket  bool
	pingInterval     int
	attempts         atomic.Int32
	received         chan string
	mu               sync.Mutex
	sockets          []*websocket.Conn
	pollQueues       map[string]chan string
	pollSessionCount int
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		t:            t,
		pingInterval: 25000,
		received:     make(chan string, 64),
		pollQueues:   make(map[string]chan string),
	}
	fs.srv = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) URL() string { return fs.srv.URL }

func (fs *fakeServer) openPacket(sid string) string {
	return fmt.Sprintf(`0{"sid":%q,"upgrades":[],"pingInterval":%d,"pingTimeout":20000,"maxPayload":1000000}`, sid, fs.pingInterval)
}

// answerConnect validates the namespace CONNECT packet
func (fs *fakeServer) answerConnect(pkt string) string {
	var auth struct {
		Token string `json:"token"`
	}
	if strings.HasPrefix(pkt, "40") && len(pkt) > 2 {
		_ = json.Unmarshal([]byte(pkt[2:]), &auth)
	}
	if fs.token != "" && auth.Token != fs.token {
		return `44{"message":"invalid token"}`
	}
	return `40{"sid":"socket-1"}`
}

func (fs *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/socket.io/") || r.URL.Query().Get("EIO") != "4" {
		http.NotFound(w, r)
		return
	}
	switch r.URL.Query().Get("transport") {
	case TransportWebsocket:
		if fs.rejectWebsocket {
			http.Error(w, "websocket disabled", http.StatusBadRequest)
			return
		}
		fs.handleWebsocket(w, r)
	case TransportPolling:
		fs.handlePolling(w, r)
	default:
		http.Error(w, "unknown transport", http.StatusBadRequest)
	}
}

func (fs *fakeServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	fs.attempts.Add(1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(fs.openPacket("ws-1"))); err != nil {
		return
	}
	_, p, err := conn.ReadMessage()
	if err != nil {
		return
	}
	answer := fs.answerConnect(string(p))
	fs.mu.Lock()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(answer)); err != nil {
		fs.mu.Unlock()
		return
	}
	if strings.HasPrefix(answer, "44") {
		fs.mu.Unlock()
		return
	}
	fs.sockets = append(fs.sockets, conn)
	fs.mu.Unlock()

	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			return
		}
		fs.received <- string(p)
	}
}

func (fs *fakeServer) handlePolling(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	if sid == "" {
		fs.attempts.Add(1)
		fs.mu.Lock()
		fs.pollSessionCount++
		sid = fmt.Sprintf("poll-%d", fs.pollSessionCount)
		fs.pollQueues[sid] = make(chan string, 64)
		fs.mu.Unlock()
		_, _ = io.WriteString(w, fs.openPacket(sid))
		return
	}
	fs.mu.Lock()
	queue, ok := fs.pollQueues[sid]
	fs.mu.Unlock()
	if !ok {
		http.Error(w, "unknown sid", http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodPost {
		body, _ := io.ReadAll(r.Body)
		for _, pkt := range splitPayload(string(body)) {
			if strings.HasPrefix(pkt, "40") {
				queue <- fs.answerConnect(pkt)
				continue
			}
			fs.received <- pkt
		}
		_, _ = io.WriteString(w, "ok")
		return
	}

	select {
	case pkt := <-queue:
		_, _ = io.WriteString(w, pkt)
	case <-time.After(200 * time.Millisecond):
		_, _ = io.WriteString(w, string(engineNoop))
	case <-r.Context().Done():
	}
}

// emit pushes an event to every connected client
func (fs *fakeServer) emit(event string, payload any) {
	fs.t.Helper()
	pkt, err := encodeEvent(event, payload)
	if err != nil {
		fs.t.Fatalf("encode event: %v", err)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, c := range fs.sockets {
		_ = c.WriteMessage(websocket.TextMessage, []byte(pkt))
	}
	for _, q := range fs.pollQueues {
		q <- pkt
	}
}

// dropAll closes every websocket connection abruptly
func (fs *fakeServer) dropAll() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, c := range fs.sockets {
		_ = c.Close()
	}
	fs.sockets = nil
}

func (fs *fakeServer) socketCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.sockets)
}
