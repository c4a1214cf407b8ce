// Package transport carries protocol frames over a byte stream or a
// WebSocket. Both flavours expose the same Conn so the server and the client
// library do not care which one they are talking over.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/netsketch/internal/protocol"
)

// ErrUnexpectedMessageType is returned when a WebSocket peer sends a
// non-binary data message.
var ErrUnexpectedMessageType = errors.New("transport: expected binary websocket message")

// Options configures a Conn. Zero timeouts disable the matching deadline.
type Options struct {
	MaxFrameSize uint32
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Conn reads decoded messages and writes encoded frames. One goroutine may
// read while another writes; Close may be called from anywhere.
type Conn interface {
	ReadMessage() (protocol.Message, error)
	WriteFrame(frame []byte) error
	Close() error
	RemoteAddr() string
}

type streamConn struct {
	conn net.Conn
	r    *bufio.Reader
	opts Options
}

// NewStream wraps a stream socket. Each read blocks until one full frame has
// arrived or the read timeout expires.
func NewStream(conn net.Conn, opts Options) Conn {
	return &streamConn{conn: conn, r: bufio.NewReader(conn), opts: opts}
}

func (c *streamConn) ReadMessage() (protocol.Message, error) {
	if c.opts.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
			return nil, err
		}
	}
	return protocol.ReadMessage(c.r, c.opts.MaxFrameSize)
}

func (c *streamConn) WriteFrame(frame []byte) error {
	if c.opts.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write(frame)
	return err
}

func (c *streamConn) Close() error {
	return c.conn.Close()
}

func (c *streamConn) RemoteAddr() string {
	return addrString(c.conn.RemoteAddr())
}

type wsConn struct {
	conn *websocket.Conn
	opts Options
}

// NewWebSocket wraps an established WebSocket. Every binary message carries
// exactly one length-prefixed frame.
func NewWebSocket(conn *websocket.Conn, opts Options) Conn {
	maxFrame := opts.MaxFrameSize
	if maxFrame == 0 {
		maxFrame = protocol.DefaultMaxFrameSize
	}
	conn.SetReadLimit(int64(maxFrame) + protocol.HeaderSize)
	return &wsConn{conn: conn, opts: opts}
}

func (c *wsConn) ReadMessage() (protocol.Message, error) {
	if c.opts.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
			return nil, err
		}
	}

	typ, frame, err := c.conn.ReadMessage()
	if err != nil {
		if errors.Is(err, websocket.ErrReadLimit) {
			return nil, fmt.Errorf("%w: %v", protocol.ErrFrameTooLarge, err)
		}
		return nil, err
	}
	if typ != websocket.BinaryMessage {
		return nil, ErrUnexpectedMessageType
	}
	return protocol.Decode(frame)
}

func (c *wsConn) WriteFrame(frame []byte) error {
	if c.opts.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *wsConn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return addrString(c.conn.RemoteAddr())
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	return addr.String()
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsExpectedClose reports whether err is the ordinary result of either side
// closing the connection, as opposed to a fault worth logging loudly.
func IsExpectedClose(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
