// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and read-only views of the shared canvas.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/netsketch/internal/protocol"
	"github.com/Tyrowin/netsketch/internal/transport"
)

// EntryView is the JSON rendering of one canvas entry.
type EntryView struct {
	ID          uint64 `json:"id"`
	Author      string `json:"author"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

func newEntryView(e protocol.Entry) EntryView {
	return EntryView{
		ID:          e.ID,
		Author:      e.Author,
		Kind:        e.Element.ElementKind().String(),
		Description: e.Element.String(),
	}
}

// handleHealth provides a simple health check endpoint that returns server status.
func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "NetSketch server is running!")
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.dispatcher.Stats())
}

// handleCanvas lists the current entries in display order.
func (s *Server) handleCanvas(c *gin.Context) {
	entries := s.dispatcher.Entries()
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newEntryView(e))
	}
	c.JSON(http.StatusOK, views)
}

// handleWebSocket upgrades the request and runs the connection on the shared
// Dispatcher until it closes. Each binary message carries one frame.
func (s *Server) handleWebSocket(upgrader *websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			s.logger.Warn("websocket upgrade failed", "addr", c.Request.RemoteAddr, "error", err)
			return
		}

		if err := s.ServeConn(transport.NewWebSocket(ws, s.transportOptions())); err != nil {
			s.logger.Debug("websocket connection rejected", "addr", c.Request.RemoteAddr, "error", err)
		}
	}
}
