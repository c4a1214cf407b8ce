// Package testhelpers provides common utilities for testing the NetSketch
// server.
//
// It starts servers on loopback listeners, connects clients over TCP or
// WebSocket, and asserts on the messages they receive, to reduce code
// duplication across package tests.
package testhelpers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/netsketch/internal/client"
	"github.com/Tyrowin/netsketch/internal/protocol"
	"github.com/Tyrowin/netsketch/internal/server"
	"github.com/Tyrowin/netsketch/internal/transport"
)

// TestOrigin is the Origin header sent by WebSocket test clients.
const TestOrigin = "http://localhost:8080"

// ReceiveTimeout bounds how long a test waits for one message.
const ReceiveTimeout = 2 * time.Second

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestConfig returns a configuration bound to an ephemeral loopback port.
func TestConfig() server.Config {
	cfg := *server.NewConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = "0"
	cfg.AllowedOrigins = []string{TestOrigin}
	return cfg
}

// StartServer starts a server with cfg and shuts it down when the test ends.
func StartServer(t *testing.T, cfg server.Config) *server.Server {
	t.Helper()

	srv := server.New(cfg, DiscardLogger())
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			t.Errorf("server shutdown: %v", err)
		}
		if err := <-served; err != nil && !errors.Is(err, server.ErrServerClosed) {
			t.Errorf("serve: %v", err)
		}
	})
	return srv
}

// StartHTTP serves srv's router on an httptest server.
func StartHTTP(t *testing.T, srv *server.Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

// WebSocketURL converts an httptest URL into the /ws endpoint URL.
func WebSocketURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func clientOptions() client.Options {
	return client.Options{
		Transport: transport.Options{ReadTimeout: ReceiveTimeout, WriteTimeout: ReceiveTimeout},
		Logger:    DiscardLogger(),
	}
}

// Dial connects a TCP client and sends Connect without waiting for a reply.
func Dial(t *testing.T, srv *server.Server, nickname string) *client.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), ReceiveTimeout)
	defer cancel()

	c, err := client.Dial(ctx, srv.Addr().String(), nickname, clientOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// Connect dials a TCP client and waits for the initial LoadCanvas.
func Connect(t *testing.T, srv *server.Server, nickname string) *client.Client {
	t.Helper()
	c := Dial(t, srv, nickname)
	ExpectKind(t, c, protocol.KindLoadCanvas)
	return c
}

// ConnectAll connects one TCP client per nickname, in order.
func ConnectAll(t *testing.T, srv *server.Server, nicknames ...string) []*client.Client {
	t.Helper()
	clients := make([]*client.Client, 0, len(nicknames))
	for _, name := range nicknames {
		clients = append(clients, Connect(t, srv, name))
	}
	return clients
}

// ConnectWebSocket dials the /ws endpoint and waits for the initial
// LoadCanvas.
func ConnectWebSocket(t *testing.T, ts *httptest.Server, nickname string) *client.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), ReceiveTimeout)
	defer cancel()

	c, err := client.DialWebSocket(ctx, WebSocketURL(ts), nickname, TestOrigin, clientOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ExpectKind(t, c, protocol.KindLoadCanvas)
	return c
}

// Receive reads the next message, failing the test on error.
func Receive(t *testing.T, c *client.Client) protocol.Message {
	t.Helper()
	msg, err := c.Receive()
	require.NoError(t, err, "receive on %s", c.Nickname())
	return msg
}

// ExpectKind reads the next message and checks its kind.
func ExpectKind(t *testing.T, c *client.Client, kind protocol.Kind) protocol.Message {
	t.Helper()
	msg := Receive(t, c)
	require.Equal(t, kind, msg.Kind(), "unexpected message for %s: %#v", c.Nickname(), msg)
	return msg
}

// ExpectMessage reads the next message and checks it equals want.
func ExpectMessage(t *testing.T, c *client.Client, want protocol.Message) {
	t.Helper()
	got := Receive(t, c)
	require.Equal(t, want, got, "unexpected message for %s", c.Nickname())
}

// ExpectClosed reads until the server closes the connection.
func ExpectClosed(t *testing.T, c *client.Client) {
	t.Helper()
	for i := 0; i < 16; i++ {
		if _, err := c.Receive(); err != nil {
			require.True(t, transport.IsExpectedClose(err), "expected close, got %v", err)
			return
		}
	}
	t.Fatalf("connection for %s was not closed", c.Nickname())
}

// WaitFor polls cond until it holds or the receive timeout passes.
func WaitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, ReceiveTimeout, 10*time.Millisecond, msg)
}

// MakeRequest executes an HTTP request with a 5-second timeout.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	httpClient := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)

	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// AssertStatusCode checks the HTTP response status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	require.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertContentType checks the prefix of the Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	require.True(t, strings.HasPrefix(contentType, expected), "expected content type %s, got %s", expected, contentType)
}
