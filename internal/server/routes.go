// Package server wires HTTP handlers into a gin engine for the NetSketch
// HTTP surface.
package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Router returns the HTTP handler serving health, stats, canvas and the
// WebSocket transport.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/", s.handleHealth)
	r.GET("/healthz", s.handleHealth)
	r.GET("/stats", s.handleStats)
	r.GET("/canvas", s.handleCanvas)
	r.GET("/ws", s.handleWebSocket(upgrader))
	return r
}

// requestLogger logs each request through slog instead of gin's own writer.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"addr", c.ClientIP())
	}
}
