package handler

import (
	"log/slog"
	"net/http"

	"testops/internal/service"
	"testops/internal/websocket"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub *websocket.Hub
	log *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *websocket.Hub, log *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, log: log}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v2")
	{
		api.GET("/runs/stream", h.StreamRuns)
	}
}

// StreamRuns subscribes the connection to run created and deleted events
func (h *WebSocketHandler) StreamRuns(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.log.WarnContext(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, service.RunTopic)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
