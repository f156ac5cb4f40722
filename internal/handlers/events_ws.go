package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/middleware"
	"github.com/AnshRaj112/moodiary-backend/internal/services"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 90 * time.Second
	wsPingPeriod = 30 * time.Second
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is enforced at the HTTP layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type EventsHandler struct {
	Hub      *services.Hub
	Sessions middleware.SessionValidator
	Log      *zap.Logger
}

// Stream handles GET /ws/events. Browsers cannot set headers on a WebSocket
// handshake, so the session token may also come from ?token=.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, "Missing session token")
		return
	}
	uid, ok, err := h.Sessions.Validate(r.Context(), token)
	if err != nil || !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid session token")
		return
	}
	userID := uid.String()

	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := h.Hub.Register(userID)
	defer h.Hub.Unregister(sub)

	done := make(chan struct{})
	go h.writeLoop(conn, sub, done)

	// The client never sends anything meaningful; reading only detects close.
	conn.SetReadLimit(4 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
}

func (h *EventsHandler) writeLoop(conn *websocket.Conn, sub *services.Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.Send:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.Log.Debug("live event write failed", zap.String("user_id", sub.UserID), zap.Error(err))
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
