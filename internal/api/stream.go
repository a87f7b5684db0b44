package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/toolkit-engine/internal/events"
	"github.com/terra-clan/toolkit-engine/internal/models"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is one frame of the unlock stream
type StreamMessage struct {
	Type  string                     `json:"type"`
	Data  string                     `json:"data,omitempty"`
	Event *models.LevelUnlockedEvent `json:"event,omitempty"`
}

// handleUnlockStream relays the caller's level unlocks over a websocket
// until either side goes away
func (s *Server) handleUnlockStream(w http.ResponseWriter, r *http.Request) {
	userID := UserFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	unlocks, unsubscribe := s.feed.Subscribe(userID)
	defer unsubscribe()

	slog.Info("unlock stream connected", "user_id", userID)

	if err := sendStreamMessage(conn, StreamMessage{Type: "connected", Data: "subscribed to goal level unlocks"}); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Clients only send control frames; reading keeps pongs flowing and detects close
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("unlock stream disconnected", "user_id", userID)
			return
		case event, ok := <-unlocks:
			if !ok {
				return
			}
			if err := sendStreamMessage(conn, StreamMessage{Type: events.TypeLevelUnlocked, Event: &event}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func sendStreamMessage(conn *websocket.Conn, msg StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		slog.Debug("failed to send stream message", "error", err)
		return err
	}
	return nil
}
