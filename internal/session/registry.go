// Package session tracks which live connections are bound to which
// nicknames. A nickname may be held by at most one live session; once that
// session ends the nickname is immediately free again.
package session

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrAlreadyConnected is returned when a nickname is held by a live session.
var ErrAlreadyConnected = errors.New("already connected")

// Peer is the outbound side of one connection.
type Peer interface {
	// ID returns the connection identity assigned when the connection was
	// accepted.
	ID() string
	// RemoteAddr returns the network address of the remote end.
	RemoteAddr() string
	// Enqueue queues a frame for delivery without blocking. It returns
	// false if the peer cannot accept more data.
	Enqueue(frame []byte) bool
	// Close tears down the connection.
	Close() error
}

// Session is one authenticated connection.
type Session struct {
	Nickname    string
	Peer        Peer
	ConnectedAt time.Time
}

// Registry maps connection identities to sessions. It is not safe for
// concurrent use.
type Registry struct {
	byID       map[string]*Session
	byNickname map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:       make(map[string]*Session),
		byNickname: make(map[string]string),
	}
}

// Connect binds peer to nickname. It fails with ErrAlreadyConnected if any
// live session holds the nickname, including one on the same connection.
func (r *Registry) Connect(peer Peer, nickname string, now time.Time) error {
	if _, taken := r.byNickname[nickname]; taken {
		return fmt.Errorf("user %s %w", nickname, ErrAlreadyConnected)
	}
	if existing, ok := r.byID[peer.ID()]; ok {
		return fmt.Errorf("connection already bound to %s: %w", existing.Nickname, ErrAlreadyConnected)
	}

	r.byID[peer.ID()] = &Session{Nickname: nickname, Peer: peer, ConnectedAt: now}
	r.byNickname[nickname] = peer.ID()
	return nil
}

// Disconnect removes the session bound to id and returns it. Removing an
// unknown id is a no-op.
func (r *Registry) Disconnect(id string) (Session, bool) {
	s, ok := r.byID[id]
	if !ok {
		return Session{}, false
	}
	delete(r.byID, id)
	delete(r.byNickname, s.Nickname)
	return *s, true
}

// NicknameOf returns the nickname bound to id.
func (r *Registry) NicknameOf(id string) (string, bool) {
	s, ok := r.byID[id]
	if !ok {
		return "", false
	}
	return s.Nickname, true
}

// IsLive reports whether nickname is held by a live session.
func (r *Registry) IsLive(nickname string) bool {
	_, ok := r.byNickname[nickname]
	return ok
}

// Targets returns every authenticated session in nickname order.
func (r *Registry) Targets() []Session {
	return r.TargetsExcept("")
}

// TargetsExcept returns every authenticated session other than id.
func (r *Registry) TargetsExcept(id string) []Session {
	out := make([]Session, 0, len(r.byID))
	for sid, s := range r.byID {
		if sid == id {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	return out
}

// Nicknames returns the live nicknames in sorted order.
func (r *Registry) Nicknames() []string {
	names := make([]string, 0, len(r.byNickname))
	for name := range r.byNickname {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.byID)
}
