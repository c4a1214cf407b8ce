// Package canvas holds the authoritative, ordered collection of drawn
// entries. A Store is not safe for concurrent use; the server serialises
// access through its state lock and each client replica owns its own Store.
package canvas

import (
	"github.com/cespare/xxhash/v2"

	"github.com/Tyrowin/netsketch/internal/protocol"
)

// Store is an ordered sequence of entries with id allocation. Insertion
// order is display order.
type Store struct {
	entries []protocol.Entry
	index   map[uint64]int
	nextID  uint64
}

// New returns an empty store whose first id is 0.
func New() *Store {
	return &Store{index: make(map[uint64]int)}
}

// Add allocates the next id, appends the entry and returns it.
func (s *Store) Add(author string, element protocol.Element) protocol.Entry {
	entry := protocol.Entry{ID: s.nextID, Element: element, Author: author}
	s.nextID++
	s.index[entry.ID] = len(s.entries)
	s.entries = append(s.entries, entry)
	return entry
}

// Get looks up an entry by id.
func (s *Store) Get(id uint64) (protocol.Entry, bool) {
	i, ok := s.index[id]
	if !ok {
		return protocol.Entry{}, false
	}
	return s.entries[i], true
}

// Update swaps the element of entry id in place, keeping its author and
// position. It reports false if no such entry exists.
func (s *Store) Update(id uint64, element protocol.Element) (protocol.Entry, bool) {
	i, ok := s.index[id]
	if !ok {
		return protocol.Entry{}, false
	}
	s.entries[i].Element = element
	return s.entries[i], true
}

// Replace overwrites the entry with the same id in place, author included.
func (s *Store) Replace(entry protocol.Entry) bool {
	i, ok := s.index[entry.ID]
	if !ok {
		return false
	}
	s.entries[i] = entry
	return true
}

// Append places a previously issued entry at the end of the sequence. If the
// id is already present the entry is replaced in place instead and Append
// reports false, so ids stay unique.
func (s *Store) Append(entry protocol.Entry) bool {
	if s.Replace(entry) {
		return false
	}
	s.index[entry.ID] = len(s.entries)
	s.entries = append(s.entries, entry)
	if entry.ID >= s.nextID {
		s.nextID = entry.ID + 1
	}
	return true
}

// Delete removes entry id. Deleting a missing id is a no-op.
func (s *Store) Delete(id uint64) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	delete(s.index, id)
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	for j := i; j < len(s.entries); j++ {
		s.index[s.entries[j].ID] = j
	}
	return true
}

// DeleteAll removes every listed id, ignoring the ones already gone.
func (s *Store) DeleteAll(ids []uint64) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := s.entries[:0]
	for _, entry := range s.entries {
		if _, gone := drop[entry.ID]; gone {
			delete(s.index, entry.ID)
			continue
		}
		s.index[entry.ID] = len(kept)
		kept = append(kept, entry)
	}
	clear(s.entries[len(kept):])
	s.entries = kept
}

// Snapshot returns a deep copy of the store.
func (s *Store) Snapshot() *Store {
	cp := &Store{
		entries: make([]protocol.Entry, len(s.entries)),
		index:   make(map[uint64]int, len(s.index)),
		nextID:  s.nextID,
	}
	copy(cp.entries, s.entries)
	for id, i := range s.index {
		cp.index[id] = i
	}
	return cp
}

// Restore replaces the contents with those of snap. The id counter never
// moves backwards, so ids issued after the snapshot was taken are not
// handed out again.
func (s *Store) Restore(snap *Store) {
	restored := snap.Snapshot()
	s.entries = restored.entries
	s.index = restored.index
	if restored.nextID > s.nextID {
		s.nextID = restored.nextID
	}
}

// Load replaces the contents with entries, as received in a full canvas
// load.
func (s *Store) Load(entries []protocol.Entry) {
	s.entries = make([]protocol.Entry, len(entries))
	s.index = make(map[uint64]int, len(entries))
	copy(s.entries, entries)
	for i, entry := range s.entries {
		s.index[entry.ID] = i
		if entry.ID >= s.nextID {
			s.nextID = entry.ID + 1
		}
	}
}

// Entries returns a copy of the entries in display order. The result is
// never nil.
func (s *Store) Entries() []protocol.Entry {
	out := make([]protocol.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// IDs returns the ids of all entries in display order.
func (s *Store) IDs() []uint64 {
	return s.collect(func(protocol.Entry) bool { return true })
}

// IDsByAuthor returns the ids of the entries drawn by author.
func (s *Store) IDsByAuthor(author string) []uint64 {
	return s.collect(func(e protocol.Entry) bool { return e.Author == author })
}

func (s *Store) collect(keep func(protocol.Entry) bool) []uint64 {
	ids := make([]uint64, 0, len(s.entries))
	for _, entry := range s.entries {
		if keep(entry) {
			ids = append(ids, entry.ID)
		}
	}
	return ids
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// NextID returns the id the next Add will assign.
func (s *Store) NextID() uint64 {
	return s.nextID
}

// Digest hashes the encoded entries in order. Two stores with equal digests
// hold the same entries in the same order.
func (s *Store) Digest() uint64 {
	h := xxhash.New()
	var buf []byte
	for _, entry := range s.entries {
		var err error
		buf, err = protocol.AppendEntry(buf[:0], entry)
		if err != nil {
			continue
		}
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}
