// Package server defines the sentinel errors returned while handling a
// connection and helpers for classifying them.
package server

import (
	"errors"

	"github.com/Tyrowin/netsketch/internal/session"
)

var (
	// ErrAlreadyConnected is returned when Connect names a nickname held by a
	// live session.
	ErrAlreadyConnected = session.ErrAlreadyConnected
	// ErrInvalidNickname is returned when Connect carries an empty nickname.
	ErrInvalidNickname = errors.New("nickname must not be empty")
	// ErrNotAuthenticated is returned when a request other than Connect
	// arrives on a connection that has not connected yet.
	ErrNotAuthenticated = errors.New("not connected")
	// ErrUnexpectedMessage is returned when a client sends a server-only
	// message kind.
	ErrUnexpectedMessage = errors.New("unexpected message")
	// ErrClientDisconnected marks a graceful Disconnect request.
	ErrClientDisconnected = errors.New("client disconnected")
	// ErrHandlerPanic wraps a panic recovered while handling a request.
	ErrHandlerPanic = errors.New("request handler panicked")
	// ErrServerClosed is returned by Serve after Shutdown.
	ErrServerClosed = errors.New("server closed")
)
