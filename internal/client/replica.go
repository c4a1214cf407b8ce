package client

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Tyrowin/netsketch/internal/canvas"
	"github.com/Tyrowin/netsketch/internal/protocol"
)

var (
	// ErrUnknownEntry is returned when an update names an id the replica
	// does not hold.
	ErrUnknownEntry = errors.New("entry does not exist")
	// ErrUnexpectedMessage is returned when a request kind reaches Apply.
	ErrUnexpectedMessage = errors.New("unexpected message")
	// ErrInvalidFilter is returned by ParseFilter for unknown arguments.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Ownership selects entries by author.
type Ownership int

const (
	OwnershipAll Ownership = iota
	OwnershipMine
)

// Filter narrows a listing. A zero Kind matches every element kind.
type Filter struct {
	Kind      protocol.ElementKind
	Ownership Ownership
}

// ParseFilter parses the two arguments of a list command, for example
// ("circle", "mine") or ("all", "all").
func ParseFilter(kind, ownership string) (Filter, error) {
	var f Filter

	if !strings.EqualFold(kind, "all") {
		k, ok := protocol.ParseElementKind(strings.ToLower(kind))
		if !ok {
			return Filter{}, fmt.Errorf("%w: element kind %q", ErrInvalidFilter, kind)
		}
		f.Kind = k
	}

	switch strings.ToLower(ownership) {
	case "all":
		f.Ownership = OwnershipAll
	case "mine":
		f.Ownership = OwnershipMine
	default:
		return Filter{}, fmt.Errorf("%w: ownership %q", ErrInvalidFilter, ownership)
	}
	return f, nil
}

// Replica is a client-side copy of the shared canvas, kept current by
// applying every message the server sends. It is safe for concurrent use.
type Replica struct {
	mu       sync.Mutex
	nickname string
	store    *canvas.Store
	onlyMine bool
}

// NewReplica returns an empty replica for nickname.
func NewReplica(nickname string) *Replica {
	return &Replica{nickname: nickname, store: canvas.New()}
}

// Apply folds one server message into the replica. Notifications leave it
// unchanged.
func (r *Replica) Apply(msg protocol.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch m := msg.(type) {
	case protocol.DrawResponse:
		r.store.Append(m.Entry)
	case protocol.UpdateResponse:
		if !r.store.Replace(m.Entry) {
			return fmt.Errorf("%w: id %d", ErrUnknownEntry, m.ID)
		}
	case protocol.Deleted:
		r.store.Delete(m.ID)
	case protocol.ClearResponse:
		r.store.DeleteAll(m.IDs)
	case protocol.LoadCanvas:
		r.store.Load(m.Entries)
	case protocol.Notification:
	default:
		return fmt.Errorf("%w: %v", ErrUnexpectedMessage, msg.Kind())
	}
	return nil
}

// Entries returns every entry in display order.
func (r *Replica) Entries() []protocol.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Entries()
}

// Get returns entry id.
func (r *Replica) Get(id uint64) (protocol.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Get(id)
}

// List returns the entries matching f in display order.
func (r *Replica) List(f Filter) []protocol.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []protocol.Entry
	for _, e := range r.store.Entries() {
		if f.Kind != 0 && e.Element.ElementKind() != f.Kind {
			continue
		}
		if f.Ownership == OwnershipMine && e.Author != r.nickname {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ShowMine restricts Visible to the replica owner's entries.
func (r *Replica) ShowMine() {
	r.mu.Lock()
	r.onlyMine = true
	r.mu.Unlock()
}

// ShowAll undoes ShowMine.
func (r *Replica) ShowAll() {
	r.mu.Lock()
	r.onlyMine = false
	r.mu.Unlock()
}

// Visible returns the entries a renderer should draw.
func (r *Replica) Visible() []protocol.Entry {
	r.mu.Lock()
	onlyMine := r.onlyMine
	r.mu.Unlock()

	if onlyMine {
		return r.List(Filter{Ownership: OwnershipMine})
	}
	return r.List(Filter{})
}

// Len returns the number of entries held.
func (r *Replica) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Len()
}

// Digest hashes the replica contents; it equals the server's digest once
// both hold the same entries in the same order.
func (r *Replica) Digest() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Digest()
}
