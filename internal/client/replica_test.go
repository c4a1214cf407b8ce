package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/netsketch/internal/protocol"
)

func entry(id uint64, author string, e protocol.Element) protocol.Entry {
	return protocol.Entry{ID: id, Element: e, Author: author}
}

func seededReplica(t *testing.T) *Replica {
	t.Helper()
	r := NewReplica("alice")
	require.NoError(t, r.Apply(protocol.LoadCanvas{Entries: []protocol.Entry{
		entry(0, "alice", protocol.Line{X2: 1}),
		entry(1, "bob", protocol.Circle{Radius: 2}),
		entry(2, "alice", protocol.Circle{Radius: 3}),
		entry(3, "bob", protocol.Text{Text: "hi"}),
	}}))
	return r
}

func ids(entries []protocol.Entry) []uint64 {
	out := make([]uint64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestReplicaAppliesResponses(t *testing.T) {
	r := seededReplica(t)

	require.NoError(t, r.Apply(protocol.DrawResponse{Entry: entry(4, "bob", protocol.Rect{Width: 1})}))
	require.NoError(t, r.Apply(protocol.UpdateResponse{ID: 1, Entry: entry(1, "bob", protocol.Circle{Radius: 9})}))
	require.NoError(t, r.Apply(protocol.Deleted{ID: 0}))
	require.NoError(t, r.Apply(protocol.Notification{Text: "[+] carol"}))

	assert.Equal(t, []uint64{1, 2, 3, 4}, ids(r.Entries()))
	got, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, protocol.Element(protocol.Circle{Radius: 9}), got.Element)

	require.NoError(t, r.Apply(protocol.ClearResponse{IDs: []uint64{2, 4}}))
	assert.Equal(t, []uint64{1, 3}, ids(r.Entries()))
}

func TestReplicaUpdateOfUnknownEntry(t *testing.T) {
	r := NewReplica("alice")
	err := r.Apply(protocol.UpdateResponse{ID: 7, Entry: entry(7, "bob", protocol.Line{})})
	require.ErrorIs(t, err, ErrUnknownEntry)
	assert.Equal(t, 0, r.Len())
}

func TestReplicaRejectsRequests(t *testing.T) {
	r := NewReplica("alice")
	require.ErrorIs(t, r.Apply(protocol.Undo{}), ErrUnexpectedMessage)
}

func TestReplicaRedrawOfKnownIDReplaces(t *testing.T) {
	r := seededReplica(t)
	require.NoError(t, r.Apply(protocol.DrawResponse{Entry: entry(1, "bob", protocol.Line{})}))
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, []uint64{0, 1, 2, 3}, ids(r.Entries()))
}

func TestReplicaList(t *testing.T) {
	r := seededReplica(t)

	tests := []struct {
		kind, ownership string
		want            []uint64
	}{
		{"all", "all", []uint64{0, 1, 2, 3}},
		{"all", "mine", []uint64{0, 2}},
		{"circle", "all", []uint64{1, 2}},
		{"circle", "mine", []uint64{2}},
		{"rect", "all", []uint64{}},
		{"Text", "ALL", []uint64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.ownership, func(t *testing.T) {
			f, err := ParseFilter(tt.kind, tt.ownership)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(r.List(f)))
		})
	}
}

func TestParseFilterRejectsUnknownArguments(t *testing.T) {
	_, err := ParseFilter("hexagon", "all")
	require.ErrorIs(t, err, ErrInvalidFilter)

	_, err = ParseFilter("line", "theirs")
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestReplicaShowMine(t *testing.T) {
	r := seededReplica(t)

	r.ShowMine()
	assert.Equal(t, []uint64{0, 2}, ids(r.Visible()))

	r.ShowAll()
	assert.Equal(t, []uint64{0, 1, 2, 3}, ids(r.Visible()))
}
