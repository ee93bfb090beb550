package controller

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, restrict to specific origins
		return true
	},
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"` // "progress" or "error"
	Payload interface{} `json:"payload"`
}

// HandleProgressWS upgrades the connection and streams sync progress updates
// until the client disconnects. Updates are pushed when the cursor or daemon
// state changes, with a periodic keepalive in between.
func (c *Controller) HandleProgressWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last progressResponse
	keepalive := 0
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		resp, err := c.progress(r)
		if err != nil {
			_ = conn.WriteJSON(ServerMessage{Type: "error", Payload: "query failed"})
			return
		}

		keepalive++
		if resp == last && keepalive < 30 {
			continue
		}
		keepalive = 0
		last = resp

		if err := conn.WriteJSON(ServerMessage{Type: "progress", Payload: resp}); err != nil {
			return
		}
	}
}
