// Package history keeps a per-nickname stack of undoable canvas mutations.
// Records are keyed by nickname rather than by connection, so a user who
// drops and quickly reconnects keeps their undo context.
package history

import (
	"sort"
	"time"

	"github.com/Tyrowin/netsketch/internal/canvas"
	"github.com/Tyrowin/netsketch/internal/protocol"
)

// Defaults for NewUsers.
const (
	DefaultMaxDepth        = 256
	DefaultReconnectWindow = 5 * time.Second
)

// Action records enough to invert one canvas mutation.
type Action interface {
	isAction()
}

// Drawn inverts a draw by deleting ID.
type Drawn struct {
	ID uint64
}

// Deleted inverts a delete by re-appending Entry.
type Deleted struct {
	Entry protocol.Entry
}

// Updated inverts an update by restoring Previous in place.
type Updated struct {
	Previous protocol.Entry
}

// Cleared inverts a clear by restoring the whole canvas.
type Cleared struct {
	Snapshot *canvas.Store
}

func (Drawn) isAction()   {}
func (Deleted) isAction() {}
func (Updated) isAction() {}
func (Cleared) isAction() {}

// Record is the history of one nickname.
type Record struct {
	Nickname string
	LastSeen time.Time
	actions  []Action
}

// Users maps nicknames to records. It is not safe for concurrent use.
type Users struct {
	records  map[string]*Record
	maxDepth int
	window   time.Duration
}

// NewUsers returns an empty set of records. maxDepth caps every stack; the
// oldest actions are discarded first. window is the reconnect freshness
// window used by Touch.
func NewUsers(maxDepth int, window time.Duration) *Users {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if window <= 0 {
		window = DefaultReconnectWindow
	}
	return &Users{
		records:  make(map[string]*Record),
		maxDepth: maxDepth,
		window:   window,
	}
}

// Touch fetches or creates the record for nickname on connect. If the
// nickname was last seen more than the freshness window ago its history is
// cleared. It reports whether existing history was retained.
func (u *Users) Touch(nickname string, now time.Time) bool {
	rec, ok := u.records[nickname]
	if !ok {
		u.records[nickname] = &Record{Nickname: nickname, LastSeen: now}
		return false
	}

	retained := true
	if now.Sub(rec.LastSeen) > u.window {
		rec.actions = nil
		retained = false
	}
	rec.LastSeen = now
	return retained && len(rec.actions) > 0
}

// MarkSeen records that nickname was active at now, typically on disconnect.
func (u *Users) MarkSeen(nickname string, now time.Time) {
	if rec, ok := u.records[nickname]; ok {
		rec.LastSeen = now
	}
}

// Push appends a to the history of nickname, creating the record if needed.
func (u *Users) Push(nickname string, a Action) {
	rec, ok := u.records[nickname]
	if !ok {
		rec = &Record{Nickname: nickname}
		u.records[nickname] = rec
	}

	if len(rec.actions) >= u.maxDepth {
		n := copy(rec.actions, rec.actions[len(rec.actions)-u.maxDepth+1:])
		clear(rec.actions[n:])
		rec.actions = rec.actions[:n]
	}
	rec.actions = append(rec.actions, a)
}

// Pop removes and returns the most recent action of nickname.
func (u *Users) Pop(nickname string) (Action, bool) {
	rec, ok := u.records[nickname]
	if !ok || len(rec.actions) == 0 {
		return nil, false
	}
	last := len(rec.actions) - 1
	a := rec.actions[last]
	rec.actions[last] = nil
	rec.actions = rec.actions[:last]
	return a, true
}

// Depth returns the number of undoable actions held for nickname.
func (u *Users) Depth(nickname string) int {
	if rec, ok := u.records[nickname]; ok {
		return len(rec.actions)
	}
	return 0
}

// Known reports whether a record exists for nickname.
func (u *Users) Known(nickname string) bool {
	_, ok := u.records[nickname]
	return ok
}

// Expire drops the records last seen more than ttl before now, skipping the
// nicknames for which live returns true. It returns the dropped nicknames in
// sorted order.
func (u *Users) Expire(now time.Time, ttl time.Duration, live func(string) bool) []string {
	var dropped []string
	for name, rec := range u.records {
		if live != nil && live(name) {
			continue
		}
		if now.Sub(rec.LastSeen) > ttl {
			delete(u.records, name)
			dropped = append(dropped, name)
		}
	}
	sort.Strings(dropped)
	return dropped
}

// Len returns the number of records.
func (u *Users) Len() int {
	return len(u.records)
}
