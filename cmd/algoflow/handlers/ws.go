package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/algoflow/algoflow/cmd/algoflow/ws"
	"github.com/algoflow/algoflow/common/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard may be served from a different origin than the API
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler attaches clients to the execution events hub
type WSHandler struct {
	hub *ws.Hub
	log *logger.Logger
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(hub *ws.Hub, log *logger.Logger) *WSHandler {
	return &WSHandler{hub: hub, log: log}
}

// Connect upgrades the request and streams execution events until the
// client disconnects
// GET /ws/executions
func (h *WSHandler) Connect(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.log.Warn("websocket upgrade failed", "error", err, "remote", c.RealIP())
		return nil
	}

	client := ws.NewClient(h.hub, conn, c.RealIP())
	client.Start()

	h.log.Debug("websocket connection established", "remote", c.RealIP())
	return nil
}
