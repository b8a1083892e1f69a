package handler

import (
	"context"
	"net/http"
	"strings"

	"vesper/internal/middleware"
	"vesper/internal/realtime"
	"vesper/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, allowedOrigins []string, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

// originChecker admits the configured frontends. Clients that send no Origin
// (native apps, tests) are admitted since the token already authenticates them.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(strings.TrimRight(a, "/"), origin) {
				return true
			}
		}
		return false
	}
}

func (h *WebSocketHandler) Serve(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", "error", err, "user_id", userID)
		return
	}

	// the request context ends with the handler; appends in flight should not
	h.hub.ServeConn(context.WithoutCancel(c.Request.Context()), conn, userID)
}
