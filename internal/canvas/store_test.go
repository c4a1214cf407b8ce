package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/netsketch/internal/protocol"
)

var black = protocol.Colour{0, 0, 0, 255}

func line(n uint16) protocol.Element {
	return protocol.Line{X1: n, Y1: n, X2: n + 1, Y2: n + 1, Colour: black}
}

func TestAddAssignsIncreasingUniqueIDs(t *testing.T) {
	s := New()

	var last uint64
	seen := make(map[uint64]bool)
	for i := 0; i < 100; i++ {
		entry := s.Add("alice", line(uint16(i)))
		if i > 0 {
			assert.Greater(t, entry.ID, last)
		}
		assert.False(t, seen[entry.ID], "id %d reused", entry.ID)
		seen[entry.ID] = true
		last = entry.ID

		if i%3 == 0 {
			s.Delete(entry.ID)
		}
	}
	assert.Equal(t, uint64(100), s.NextID())
}

func TestGetUpdateKeepsPositionAndAuthor(t *testing.T) {
	s := New()
	s.Add("alice", line(1))
	target := s.Add("bob", line(2))
	s.Add("carol", line(3))

	updated, ok := s.Update(target.ID, protocol.Circle{X: 5, Y: 5, Radius: 9, Colour: black})
	require.True(t, ok)
	assert.Equal(t, "bob", updated.Author)
	assert.Equal(t, target.ID, updated.ID)

	got, ok := s.Get(target.ID)
	require.True(t, ok)
	assert.Equal(t, updated, got)
	assert.Equal(t, []uint64{0, 1, 2}, s.IDs())

	_, ok = s.Update(99, line(9))
	assert.False(t, ok)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := New()
	for i := 0; i < 4; i++ {
		s.Add("alice", line(uint16(i)))
	}

	assert.True(t, s.Delete(1))
	once := s.Entries()
	digest := s.Digest()

	assert.False(t, s.Delete(1))
	assert.Equal(t, once, s.Entries())
	assert.Equal(t, digest, s.Digest())

	_, ok := s.Get(1)
	assert.False(t, ok)
	got, ok := s.Get(3)
	require.True(t, ok)
	assert.Equal(t, uint64(3), got.ID)
}

func TestAppendReinsertsAtEnd(t *testing.T) {
	s := New()
	first := s.Add("alice", line(1))
	s.Add("bob", line(2))

	require.True(t, s.Delete(first.ID))
	assert.True(t, s.Append(first))
	assert.Equal(t, []uint64{1, 0}, s.IDs())

	// Appending an id that is already present replaces it instead.
	changed := first
	changed.Element = line(7)
	assert.False(t, s.Append(changed))
	assert.Equal(t, []uint64{1, 0}, s.IDs())
	got, _ := s.Get(first.ID)
	assert.Equal(t, line(7), got.Element)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := New()
	entry := s.Add("alice", line(1))
	snap := s.Snapshot()

	s.Update(entry.ID, line(5))
	s.Add("bob", line(6))

	assert.Equal(t, 1, snap.Len())
	got, _ := snap.Get(entry.ID)
	assert.Equal(t, line(1), got.Element)
}

func TestRestoreNeverRewindsIDs(t *testing.T) {
	s := New()
	s.Add("alice", line(1))
	snap := s.Snapshot()
	s.Add("alice", line(2))
	s.Add("alice", line(3))

	s.Restore(snap)
	assert.Equal(t, []uint64{0}, s.IDs())

	next := s.Add("bob", line(4))
	assert.Equal(t, uint64(3), next.ID)
}

func TestDeleteAllAndIDsByAuthor(t *testing.T) {
	s := New()
	authors := []string{"a", "b", "a", "c", "b"}
	for i, author := range authors {
		s.Add(author, line(uint16(i)))
	}

	assert.Equal(t, []uint64{1, 4}, s.IDsByAuthor("b"))
	assert.Empty(t, s.IDsByAuthor("nobody"))

	s.DeleteAll([]uint64{0, 2, 42})
	assert.Equal(t, []uint64{1, 3, 4}, s.IDs())

	got, ok := s.Get(4)
	require.True(t, ok)
	assert.Equal(t, "b", got.Author)
}

func TestLoadAndDigestConvergence(t *testing.T) {
	server := New()
	server.Add("a", line(1))
	server.Add("b", protocol.Text{X: 1, Y: 1, Text: "hi", Colour: black})
	server.Delete(0)

	replica := New()
	replica.Load(server.Entries())
	assert.Equal(t, server.Digest(), replica.Digest())

	server.Add("a", line(3))
	assert.NotEqual(t, server.Digest(), replica.Digest())
	assert.Equal(t, uint64(2), replica.NextID())
}

func TestEntriesNeverNil(t *testing.T) {
	assert.NotNil(t, New().Entries())
}
