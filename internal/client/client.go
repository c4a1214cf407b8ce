// Package client is a small library for talking to a NetSketch server. It
// sends requests over TCP or WebSocket and keeps a Replica of the shared
// canvas up to date from the messages it receives.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/netsketch/internal/protocol"
	"github.com/Tyrowin/netsketch/internal/transport"
)

// Options configures a Client.
type Options struct {
	Transport transport.Options
	Logger    *slog.Logger
}

// Client is one connection to the server. Send may be called from several
// goroutines; Receive must be called from one.
type Client struct {
	conn     transport.Conn
	nickname string
	replica  *Replica
	logger   *slog.Logger

	writeMu sync.Mutex
}

// Dial connects to the server at addr over TCP and sends Connect(nickname).
// The server answers with LoadCanvas, or with a Notification followed by a
// close when the nickname is taken.
func Dial(ctx context.Context, addr, nickname string, opts Options) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return start(transport.NewStream(nc, opts.Transport), nickname, opts)
}

// DialWebSocket connects to a /ws endpoint and sends Connect(nickname).
// origin is sent as the Origin header and must be allowed by the server.
func DialWebSocket(ctx context.Context, url, nickname, origin string, opts Options) (*Client, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return start(transport.NewWebSocket(ws, opts.Transport), nickname, opts)
}

// New wraps an established transport without sending anything.
func New(conn transport.Conn, nickname string, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn:     conn,
		nickname: nickname,
		replica:  NewReplica(nickname),
		logger:   logger.With("nickname", nickname),
	}
}

func start(conn transport.Conn, nickname string, opts Options) (*Client, error) {
	c := New(conn, nickname, opts)
	if err := c.Send(protocol.Connect{Nickname: nickname}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// Nickname returns the nickname the client connected with.
func (c *Client) Nickname() string { return c.nickname }

// Replica returns the local copy of the canvas.
func (c *Client) Replica() *Replica { return c.replica }

// Send encodes and writes one request.
func (c *Client) Send(m protocol.Message) error {
	frame, err := protocol.Encode(m)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteFrame(frame); err != nil {
		return fmt.Errorf("send %v: %w", m.Kind(), err)
	}
	return nil
}

// Receive reads the next message and applies it to the replica.
func (c *Client) Receive() (protocol.Message, error) {
	msg, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if err := c.replica.Apply(msg); err != nil {
		c.logger.Warn("replica out of sync", "kind", msg.Kind(), "error", err)
	}
	return msg, nil
}

// Draw asks the server to add element.
func (c *Client) Draw(element protocol.Element) error {
	return c.Send(protocol.DrawRequest{Element: element})
}

// Update asks the server to replace the element of entry id.
func (c *Client) Update(id uint64, element protocol.Element) error {
	return c.Send(protocol.UpdateRequest{ID: id, Element: element})
}

// Delete asks the server to remove entry id.
func (c *Client) Delete(id uint64) error {
	return c.Send(protocol.DeleteRequest{ID: id})
}

// Clear asks the server to remove every entry, or only this client's.
func (c *Client) Clear(onlyOwned bool) error {
	return c.Send(protocol.ClearRequest{OnlyOwned: onlyOwned})
}

// Undo reverts this nickname's most recent action.
func (c *Client) Undo() error {
	return c.Send(protocol.Undo{})
}

// Close sends Disconnect and closes the connection.
func (c *Client) Close() error {
	sendErr := c.Send(protocol.Disconnect{})
	closeErr := c.conn.Close()
	if sendErr != nil && !transport.IsExpectedClose(sendErr) {
		return sendErr
	}
	if closeErr != nil && !transport.IsExpectedClose(closeErr) {
		return closeErr
	}
	return nil
}
