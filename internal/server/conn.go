// Package server manages individual connections, handling read/write pumps,
// rate limiting, and lifecycle control for each session.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Tyrowin/netsketch/internal/protocol"
	"github.com/Tyrowin/netsketch/internal/transport"
)

var rateLimitedFrame = mustEncode(protocol.Notification{Text: "Rate limit exceeded"})

// conn is one accepted connection. The reader goroutine decodes requests and
// hands them to the Dispatcher; the writer goroutine drains send.
type conn struct {
	id         string
	transport  transport.Conn
	dispatcher *Dispatcher
	logger     *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool

	rateLimiter *rateLimiter
	rateLimit   RateLimitConfig

	closeOnce    sync.Once
	teardownOnce sync.Once
}

func newConn(t transport.Conn, d *Dispatcher, cfg Config, logger *slog.Logger) *conn {
	id := uuid.NewString()
	return &conn{
		id:          id,
		transport:   t,
		dispatcher:  d,
		logger:      logger.With("conn", id, "addr", t.RemoteAddr()),
		send:        make(chan []byte, cfg.SendQueueSize),
		rateLimiter: newRateLimiter(cfg.RateLimit, nil),
		rateLimit:   cfg.RateLimit,
	}
}

// ID implements session.Peer.
func (c *conn) ID() string { return c.id }

// RemoteAddr implements session.Peer.
func (c *conn) RemoteAddr() string { return c.transport.RemoteAddr() }

// Enqueue queues frame for the writer without blocking. It reports false
// when the queue is full or already closed.
func (c *conn) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the writer and closes the underlying transport. Frames still
// queued are dropped. It never blocks, so the Dispatcher may call it while
// holding its lock.
func (c *conn) Close() error {
	c.closeSend()
	c.closeOnce.Do(func() {
		go c.closeTransport()
	})
	return nil
}

func (c *conn) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *conn) closeTransport() {
	if err := c.transport.Close(); err != nil && !transport.IsExpectedClose(err) {
		c.logger.Warn("error closing connection", "error", err)
	}
}

// serve runs the writer in the background and the reader in the calling
// goroutine. It returns once the reader has stopped; the writer exits on its
// own once the queue is closed.
func (c *conn) serve(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
	c.readPump()
}

// teardown runs the disconnect path exactly once per connection.
func (c *conn) teardown() {
	c.teardownOnce.Do(func() {
		c.dispatcher.Disconnect(c)
		c.closeSend()
	})
}

func (c *conn) readPump() {
	defer c.teardown()

	c.logger.Debug("connection accepted")
	for {
		msg, err := c.transport.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		// Disconnect is always honoured so a limited client can still leave.
		if _, leaving := msg.(protocol.Disconnect); !leaving && !c.checkRateLimit() {
			c.Enqueue(rateLimitedFrame)
			continue
		}

		if err := c.dispatch(msg); err != nil {
			c.handleDispatchError(err)
			return
		}
	}
}

// dispatch hands msg to the Dispatcher, converting a panic into an error so
// only this connection is torn down.
func (c *conn) dispatch(msg protocol.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return c.dispatcher.Handle(c, msg)
}

// handleReadError logs the reason the read loop stopped at a level that
// matches how surprising it is.
func (c *conn) handleReadError(err error) {
	switch {
	case transport.IsTimeout(err):
		c.logger.Info("connection timed out")
	case errors.Is(err, protocol.ErrFrameTooLarge):
		c.logger.Warn("frame exceeded maximum size", "error", err)
	case errors.Is(err, protocol.ErrDecode):
		c.logger.Warn("malformed frame", "error", err)
	case transport.IsExpectedClose(err):
		c.logger.Debug("connection closed", "error", err)
	default:
		c.logger.Warn("read error", "error", err)
	}
}

func (c *conn) handleDispatchError(err error) {
	switch {
	case errors.Is(err, ErrClientDisconnected):
		c.logger.Debug("client requested disconnect")
	case errors.Is(err, ErrHandlerPanic):
		c.logger.Error("dropping connection after handler panic", "error", err)
	default:
		c.logger.Info("closing connection", "error", err)
	}
}

// checkRateLimit reports whether the next request may be processed.
func (c *conn) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.logger.Warn("rate limit exceeded; discarding request",
			"burst", c.rateLimit.Burst,
			"interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

func (c *conn) writePump() {
	defer c.Close()

	for frame := range c.send {
		if err := c.transport.WriteFrame(frame); err != nil {
			if transport.IsExpectedClose(err) {
				c.logger.Debug("write on closed connection", "error", err)
			} else {
				c.logger.Warn("write error", "error", err)
			}
			return
		}
	}
}

func mustEncode(m protocol.Message) []byte {
	frame, err := protocol.Encode(m)
	if err != nil {
		panic(err)
	}
	return frame
}
