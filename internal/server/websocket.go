package server

import (
	"encoding/json"
	"net/http"
	"time"

	"example/merch-display/internal/display"
	"example/merch-display/internal/logger"
	"example/merch-display/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// outboxSize bounds snapshots queued for a slow display browser
	outboxSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// displayWebSocket streams display snapshots to a browser and answers its
// requests. Every message sent is a models.WSResponse.
func (a *App) displayWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Errorw("WebSocket upgrade error", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	clientAddr := conn.RemoteAddr().String()
	logger.Log.Infow("Display client connected", "remote_addr", clientAddr)

	// one writer goroutine owns the connection's write side
	outbox := make(chan any, outboxSize)
	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-done:
				return
			case v := <-outbox:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(v); err != nil {
					logger.Log.Errorw("Write error", "error", err, "remote_addr", clientAddr)
					conn.Close()
					return
				}
			}
		}
	}()

	// outbox is never closed; late snapshot callbacks are dropped once done
	send := func(v any) {
		select {
		case <-done:
		case outbox <- v:
		default:
			logger.Log.Warnw("Dropping display update for slow client", "remote_addr", clientAddr)
		}
	}

	unsubscribe := a.Display.Subscribe(func(snap display.Snapshot) {
		send(models.WSResponse{Success: true, Data: snap})
	})
	send(models.WSResponse{Success: true, Data: a.Display.Snapshot()})

	a.readDisplayMessages(conn, clientAddr, send)

	unsubscribe()
	close(done)
	<-writerDone
	logger.Log.Infow("Display client disconnected", "remote_addr", clientAddr)
}

func (a *App) readDisplayMessages(conn *websocket.Conn, clientAddr string, send func(any)) {
	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warnw("WebSocket error", "error", err, "remote_addr", clientAddr)
			}
			return
		}

		// Try to unmarshal as an array (batch) of messages first
		var batch []models.WSMessage
		if err := json.Unmarshal(p, &batch); err == nil && len(batch) > 0 {
			responses := make([]models.WSResponse, 0, len(batch))
			for _, m := range batch {
				responses = append(responses, a.handleDisplayMessage(m, clientAddr))
			}
			send(responses)
			continue
		}

		var msg models.WSMessage
		if err := json.Unmarshal(p, &msg); err != nil {
			logger.Log.Warnw("Invalid message format", "remote_addr", clientAddr, "error", err)
			send(models.WSResponse{Success: false, Error: "invalid message format"})
			continue
		}
		send(a.handleDisplayMessage(msg, clientAddr))
	}
}

// handleDisplayMessage processes a single WSMessage and returns a WSResponse
func (a *App) handleDisplayMessage(msg models.WSMessage, clientAddr string) models.WSResponse {
	logger.Log.Debugw("Processing action", "action", msg.Action, "remote_addr", clientAddr)
	switch msg.Action {
	case "getState":
		return models.WSResponse{Success: true, Data: a.Display.Snapshot()}
	case "getParams":
		return models.WSResponse{Success: true, Data: a.Display.Snapshot().Params}
	case "getSettings":
		if a.Settings == nil {
			return models.WSResponse{Success: false, Error: "settings unavailable"}
		}
		return models.WSResponse{Success: true, Data: a.Settings.Get()}
	default:
		logger.Log.Infow("unknown action", "action", msg.Action, "remote_addr", clientAddr)
		return models.WSResponse{Success: false, Error: "unknown action"}
	}
}
