// Package server applies decoded requests to the shared canvas state and
// fans the resulting messages out to every live session via the Dispatcher.
package server

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Tyrowin/netsketch/internal/canvas"
	"github.com/Tyrowin/netsketch/internal/history"
	"github.com/Tyrowin/netsketch/internal/protocol"
	"github.com/Tyrowin/netsketch/internal/session"
)

// State is everything shared between connections.
type State struct {
	Canvas   *canvas.Store
	Sessions *session.Registry
	Users    *history.Users
}

// Dispatcher owns the State and serialises every request behind one mutex.
// Outgoing frames are enqueued on the target peers while the lock is held,
// so all peers observe mutations in the same order; the socket writes happen
// later on each peer's writer goroutine.
type Dispatcher struct {
	mu     sync.Mutex
	state  State
	logger *slog.Logger
	now    func() time.Time
}

// Stats is a point-in-time summary of the shared state.
type Stats struct {
	Sessions  int      `json:"sessions"`
	Nicknames []string `json:"nicknames"`
	Users     int      `json:"users"`
	Entries   int      `json:"entries"`
	NextID    uint64   `json:"nextId"`
	Digest    string   `json:"digest"`
}

// NewDispatcher creates a Dispatcher with an empty canvas.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		state: State{
			Canvas:   canvas.New(),
			Sessions: session.NewRegistry(),
			Users:    history.NewUsers(cfg.HistoryDepth, cfg.ReconnectWindow),
		},
		logger: logger,
		now:    time.Now,
	}
}

// Handle applies one request from peer. A non-nil error means the
// connection must be torn down.
func (d *Dispatcher) Handle(peer session.Peer, msg protocol.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if m, ok := msg.(protocol.Connect); ok {
		return d.handleConnect(peer, m.Nickname)
	}

	nickname, ok := d.state.Sessions.NicknameOf(peer.ID())
	if !ok {
		return fmt.Errorf("%v before connect: %w", msg.Kind(), ErrNotAuthenticated)
	}

	switch m := msg.(type) {
	case protocol.Disconnect:
		return ErrClientDisconnected
	case protocol.DrawRequest:
		d.handleDraw(peer, nickname, m.Element)
	case protocol.UpdateRequest:
		d.handleUpdate(peer, nickname, m.ID, m.Element)
	case protocol.DeleteRequest:
		d.handleDelete(peer, nickname, m.ID)
	case protocol.ClearRequest:
		d.handleClear(nickname, m.OnlyOwned)
	case protocol.Undo:
		d.handleUndo(peer, nickname)
	default:
		return fmt.Errorf("%w: %v from client", ErrUnexpectedMessage, msg.Kind())
	}
	return nil
}

func (d *Dispatcher) handleConnect(peer session.Peer, nickname string) error {
	if current, ok := d.state.Sessions.NicknameOf(peer.ID()); ok {
		d.reply(peer, protocol.Notification{Text: "Already connected as " + current})
		return nil
	}
	if nickname == "" {
		d.reply(peer, protocol.Notification{Text: "Nickname must not be empty"})
		return ErrInvalidNickname
	}

	now := d.now()
	if err := d.state.Sessions.Connect(peer, nickname, now); err != nil {
		d.logger.Warn("connect rejected", "addr", peer.RemoteAddr(), "nickname", nickname, "error", err)
		d.reply(peer, protocol.Notification{Text: capitalize(err.Error())})
		return err
	}

	retained := d.state.Users.Touch(nickname, now)
	d.logger.Info("user connected",
		"addr", peer.RemoteAddr(),
		"nickname", nickname,
		"history_retained", retained,
		"sessions", d.state.Sessions.Len())

	d.broadcastExcept(peer.ID(), protocol.Notification{Text: "[+] " + nickname})
	d.reply(peer, protocol.LoadCanvas{Entries: d.state.Canvas.Entries()})
	return nil
}

func (d *Dispatcher) handleDraw(peer session.Peer, nickname string, element protocol.Element) {
	if element == nil {
		d.reply(peer, protocol.Notification{Text: "Invalid element"})
		return
	}

	entry := d.state.Canvas.Add(nickname, element)
	d.state.Users.Push(nickname, history.Drawn{ID: entry.ID})
	d.logger.Debug("entry drawn", "nickname", nickname, "entry", entry.String())

	d.broadcast(protocol.DrawResponse{Entry: entry})
}

func (d *Dispatcher) handleUpdate(peer session.Peer, nickname string, id uint64, element protocol.Element) {
	if element == nil {
		d.reply(peer, protocol.Notification{Text: "Invalid element"})
		return
	}

	previous, ok := d.state.Canvas.Get(id)
	if !ok {
		d.reply(peer, missingEntry(id))
		return
	}

	entry, _ := d.state.Canvas.Update(id, element)
	d.state.Users.Push(nickname, history.Updated{Previous: previous})
	d.logger.Debug("entry updated", "nickname", nickname, "entry", entry.String())

	d.broadcast(protocol.UpdateResponse{ID: id, Entry: entry})
}

func (d *Dispatcher) handleDelete(peer session.Peer, nickname string, id uint64) {
	entry, ok := d.state.Canvas.Get(id)
	if !ok {
		d.reply(peer, missingEntry(id))
		return
	}

	d.state.Users.Push(nickname, history.Deleted{Entry: entry})
	d.state.Canvas.Delete(id)
	d.logger.Debug("entry deleted", "nickname", nickname, "id", id)

	d.broadcast(protocol.Deleted{ID: id})
}

func (d *Dispatcher) handleClear(nickname string, onlyOwned bool) {
	snapshot := d.state.Canvas.Snapshot()

	var ids []uint64
	if onlyOwned {
		ids = d.state.Canvas.IDsByAuthor(nickname)
	} else {
		ids = d.state.Canvas.IDs()
	}

	d.state.Users.Push(nickname, history.Cleared{Snapshot: snapshot})
	d.state.Canvas.DeleteAll(ids)
	d.logger.Debug("canvas cleared", "nickname", nickname, "only_owned", onlyOwned, "removed", len(ids))

	d.broadcast(protocol.ClearResponse{IDs: ids})
}

func (d *Dispatcher) handleUndo(peer session.Peer, nickname string) {
	action, ok := d.state.Users.Pop(nickname)
	if !ok {
		return
	}

	switch a := action.(type) {
	case history.Drawn:
		if d.state.Canvas.Delete(a.ID) {
			d.broadcast(protocol.Deleted{ID: a.ID})
		}
	case history.Deleted:
		if d.state.Canvas.Append(a.Entry) {
			d.broadcast(protocol.DrawResponse{Entry: a.Entry})
		} else {
			d.broadcast(protocol.UpdateResponse{ID: a.Entry.ID, Entry: a.Entry})
		}
	case history.Updated:
		if !d.state.Canvas.Replace(a.Previous) {
			d.reply(peer, missingEntry(a.Previous.ID))
			return
		}
		d.broadcast(protocol.UpdateResponse{ID: a.Previous.ID, Entry: a.Previous})
	case history.Cleared:
		d.state.Canvas.Restore(a.Snapshot)
		d.broadcast(protocol.LoadCanvas{Entries: d.state.Canvas.Entries()})
	}
	d.logger.Debug("undo applied", "nickname", nickname, "action", fmt.Sprintf("%T", action))
}

// Disconnect releases the session bound to peer, if any, and records when
// its nickname was last seen. It is safe to call more than once.
func (d *Dispatcher) Disconnect(peer session.Peer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.state.Sessions.Disconnect(peer.ID())
	if !ok {
		return
	}
	d.state.Users.MarkSeen(s.Nickname, d.now())
	d.logger.Info("user disconnected",
		"addr", peer.RemoteAddr(),
		"nickname", s.Nickname,
		"sessions", d.state.Sessions.Len())
}

// ExpireUsers forgets the history of nicknames that have been offline for
// longer than ttl.
func (d *Dispatcher) ExpireUsers(ttl time.Duration) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	dropped := d.state.Users.Expire(d.now(), ttl, d.state.Sessions.IsLive)
	if len(dropped) > 0 {
		d.logger.Info("expired idle users", "count", len(dropped))
	}
	return dropped
}

// Entries returns a copy of the canvas in display order.
func (d *Dispatcher) Entries() []protocol.Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Canvas.Entries()
}

// Stats summarises the shared state.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Stats{
		Sessions:  d.state.Sessions.Len(),
		Nicknames: d.state.Sessions.Nicknames(),
		Users:     d.state.Users.Len(),
		Entries:   d.state.Canvas.Len(),
		NextID:    d.state.Canvas.NextID(),
		Digest:    strconv.FormatUint(d.state.Canvas.Digest(), 16),
	}
}

// reply queues msg for peer alone.
func (d *Dispatcher) reply(peer session.Peer, msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		d.logger.Error("failed to encode reply", "kind", msg.Kind(), "error", err)
		return
	}
	if !peer.Enqueue(frame) {
		d.evict(peer)
	}
}

func (d *Dispatcher) broadcast(msg protocol.Message) {
	d.broadcastExcept("", msg)
}

// broadcastExcept queues msg for every live session other than skipID.
// Peers whose queues are full are evicted after the fan-out so the
// remaining peers still receive the message.
func (d *Dispatcher) broadcastExcept(skipID string, msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		d.logger.Error("failed to encode broadcast", "kind", msg.Kind(), "error", err)
		return
	}

	targets := d.state.Sessions.TargetsExcept(skipID)
	var failed []session.Peer
	for _, s := range targets {
		if !s.Peer.Enqueue(frame) {
			failed = append(failed, s.Peer)
		}
	}

	d.logger.Debug("broadcast", "kind", msg.Kind(), "targets", len(targets), "failed", len(failed))

	for _, peer := range failed {
		d.evict(peer)
	}
}

// evict drops a peer that cannot keep up. Its reader observes the closed
// connection and runs the regular disconnect path, which is then a no-op.
func (d *Dispatcher) evict(peer session.Peer) {
	if s, ok := d.state.Sessions.Disconnect(peer.ID()); ok {
		d.state.Users.MarkSeen(s.Nickname, d.now())
		d.logger.Warn("evicted slow client", "addr", peer.RemoteAddr(), "nickname", s.Nickname)
	}
	if err := peer.Close(); err != nil {
		d.logger.Debug("error closing evicted client", "addr", peer.RemoteAddr(), "error", err)
	}
}

func missingEntry(id uint64) protocol.Notification {
	return protocol.Notification{Text: fmt.Sprintf("Entry with id %d does not exist", id)}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}
