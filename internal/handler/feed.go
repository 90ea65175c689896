package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/lendingdesk/internal/events"
	"github.com/yourorg/lendingdesk/internal/security"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// FeedHandler streams borrow-lifecycle events to librarians over WebSocket
type FeedHandler struct {
	broadcaster    *events.Broadcaster
	gate           *security.Gate
	logger         *slog.Logger
	allowedOrigins []string
}

// NewFeedHandler creates a new event feed handler
func NewFeedHandler(broadcaster *events.Broadcaster, gate *security.Gate, logger *slog.Logger, allowedOrigins []string) *FeedHandler {
	return &FeedHandler{
		broadcaster:    broadcaster,
		gate:           gate,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
}

// upgrader is built per-request to use the instance's allowed origins
func (h *FeedHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no origin
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/requests
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	if err := h.gate.RequireLibrarian(p, "subscribe to the request feed"); err != nil {
		writeError(w, h.logger, err)
		return
	}

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	sub, cancel := h.broadcaster.Subscribe()
	defer cancel()

	h.logger.Info("feed subscriber connected", slog.String("user_id", p.UserID))

	// Drain client messages so pong frames and close frames are processed
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-sub:
			if !open {
				return
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(ev); err != nil {
				h.logger.Debug("feed write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
