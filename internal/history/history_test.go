package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopIsLIFO(t *testing.T) {
	u := NewUsers(0, 0)
	u.Touch("alice", time.Now())

	u.Push("alice", Drawn{ID: 1})
	u.Push("alice", Drawn{ID: 2})

	a, ok := u.Pop("alice")
	require.True(t, ok)
	assert.Equal(t, Drawn{ID: 2}, a)

	a, ok = u.Pop("alice")
	require.True(t, ok)
	assert.Equal(t, Drawn{ID: 1}, a)

	_, ok = u.Pop("alice")
	assert.False(t, ok)

	_, ok = u.Pop("nobody")
	assert.False(t, ok)
}

func TestPushCapsDepth(t *testing.T) {
	u := NewUsers(3, time.Second)
	for i := uint64(0); i < 5; i++ {
		u.Push("bob", Drawn{ID: i})
	}
	assert.Equal(t, 3, u.Depth("bob"))

	var ids []uint64
	for {
		a, ok := u.Pop("bob")
		if !ok {
			break
		}
		ids = append(ids, a.(Drawn).ID)
	}
	assert.Equal(t, []uint64{4, 3, 2}, ids)
}

// TestReconnectWindow verifies that history survives a reconnect inside the
// freshness window and is discarded after it.
func TestReconnectWindow(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	u := NewUsers(10, 5*time.Second)

	assert.False(t, u.Touch("bob", start))
	u.Push("bob", Drawn{ID: 7})
	u.MarkSeen("bob", start.Add(time.Second))

	assert.True(t, u.Touch("bob", start.Add(3*time.Second)))
	assert.Equal(t, 1, u.Depth("bob"))

	u.MarkSeen("bob", start.Add(4*time.Second))
	assert.False(t, u.Touch("bob", start.Add(10*time.Second)))
	assert.Equal(t, 0, u.Depth("bob"))
	assert.True(t, u.Known("bob"))
}

func TestExpireSkipsLiveNicknames(t *testing.T) {
	now := time.Now()
	u := NewUsers(0, 0)
	u.Touch("stale", now.Add(-2*time.Hour))
	u.Touch("online", now.Add(-2*time.Hour))
	u.Touch("recent", now.Add(-time.Minute))

	dropped := u.Expire(now, time.Hour, func(name string) bool { return name == "online" })
	assert.Equal(t, []string{"stale"}, dropped)
	assert.Equal(t, 2, u.Len())
	assert.False(t, u.Known("stale"))
}
