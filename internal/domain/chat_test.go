package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRoomID_OrderIndependent(t *testing.T) {
	pairs := [][2]int64{{3, 7}, {7, 3}, {1, 1}, {10, 9}, {2, 100}, {1 << 40, 5}}
	for _, p := range pairs {
		assert.Equal(t, ChatRoomID(p[0], p[1]), ChatRoomID(p[1], p[0]))
	}
	assert.Equal(t, "3_7", ChatRoomID(7, 3))
}

func TestChatRoomID_NumericOrdering(t *testing.T) {
	// lexicographic ordering would give "10_9"
	assert.Equal(t, "9_10", ChatRoomID(10, 9))
	assert.Equal(t, "2_100", ChatRoomID(100, 2))
}

func TestChatRoomID_CollisionFree(t *testing.T) {
	seen := make(map[string][2]int64)
	for a := int64(1); a <= 40; a++ {
		for b := a; b <= 40; b++ {
			id := ChatRoomID(a, b)
			if prev, ok := seen[id]; ok {
				t.Fatalf("ChatRoomID(%d,%d) collides with %v: %q", a, b, prev, id)
			}
			seen[id] = [2]int64{a, b}
		}
	}
}

func TestParseChatRoomID(t *testing.T) {
	a, b, err := ParseChatRoomID("3_7")
	require.NoError(t, err)
	assert.Equal(t, int64(3), a)
	assert.Equal(t, int64(7), b)

	for _, bad := range []string{"", "3", "7_3", "3_x", "_7", "0_7", "-1_7", "03_7", "chat_alice", "3_7_9"} {
		_, _, err := ParseChatRoomID(bad)
		assert.ErrorIs(t, err, ErrMalformedRoomID, bad)
	}
}

func TestChatPeer(t *testing.T) {
	peer, err := ChatPeer("3_7", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), peer)

	peer, err = ChatPeer("3_7", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), peer)

	_, err = ChatPeer("3_7", 4)
	assert.ErrorIs(t, err, ErrNotParticipant)

	peer, err = ChatPeer("5_5", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), peer)
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", RelativeTime(now.Add(-30*time.Second), now))
	assert.Equal(t, "5m ago", RelativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", RelativeTime(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", RelativeTime(now.Add(-49*time.Hour), now))
}
