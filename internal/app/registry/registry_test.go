package registry

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	connID string
	userID string
	frames [][]byte
}

func (c *fakeClient) ConnID() string { return c.connID }
func (c *fakeClient) UserID() string { return c.userID }
func (c *fakeClient) Send(ctx context.Context, data []byte) error {
	c.frames = append(c.frames, data)
	return nil
}
func (c *fakeClient) Close() {}

func TestJoinTracksMembershipBothWays(t *testing.T) {
	hub := NewRegistry()
	alice := &fakeClient{connID: "c1", userID: "alice"}
	hub.Register(alice)
	hub.Join("dream-1", alice)
	hub.Join("dream-2", alice)

	rooms := hub.Rooms("c1")
	sort.Strings(rooms)
	assert.Equal(t, []string{"dream-1", "dream-2"}, rooms)

	members := hub.Members("dream-1")
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].UserID())
}

func TestLeaveDropsEmptyRoom(t *testing.T) {
	hub := NewRegistry()
	alice := &fakeClient{connID: "c1", userID: "alice"}
	hub.Register(alice)
	hub.Join("dream-1", alice)
	hub.Leave("dream-1", alice)

	assert.Empty(t, hub.Members("dream-1"))
	assert.Empty(t, hub.Rooms("c1"))
}

func TestUnregisterReturnsJoinedRooms(t *testing.T) {
	hub := NewRegistry()
	alice := &fakeClient{connID: "c1", userID: "alice"}
	hub.Register(alice)
	hub.Join("dream-1", alice)
	hub.Join("dream-2", alice)

	rooms := hub.Unregister(alice)
	sort.Strings(rooms)
	assert.Equal(t, []string{"dream-1", "dream-2"}, rooms)
	assert.Empty(t, hub.Members("dream-1"))
	assert.Empty(t, hub.Members("dream-2"))
}

func TestBroadcastRoomSkipsSender(t *testing.T) {
	hub := NewRegistry()
	alice := &fakeClient{connID: "c1", userID: "alice"}
	bob := &fakeClient{connID: "c2", userID: "bob"}
	outsider := &fakeClient{connID: "c3", userID: "carol"}
	for _, c := range []*fakeClient{alice, bob, outsider} {
		hub.Register(c)
	}
	hub.Join("dream-1", alice)
	hub.Join("dream-1", bob)
	hub.Join("dream-2", outsider)

	hub.BroadcastRoom(context.Background(), "dream-1", "c1", []byte(`{"event":"x"}`))

	assert.Empty(t, alice.frames, "sender must not hear its own frame")
	assert.Len(t, bob.frames, 1)
	assert.Empty(t, outsider.frames, "other rooms must not hear it")
}

func TestBroadcastRoomIncludesSenderWhenExceptEmpty(t *testing.T) {
	hub := NewRegistry()
	alice := &fakeClient{connID: "c1", userID: "alice"}
	hub.Register(alice)
	hub.Join("dream-1", alice)

	hub.BroadcastRoom(context.Background(), "dream-1", "", []byte(`{}`))
	assert.Len(t, alice.frames, 1)
}

func TestBroadcastAllReachesEveryConnection(t *testing.T) {
	hub := NewRegistry()
	alice := &fakeClient{connID: "c1", userID: "alice"}
	bob := &fakeClient{connID: "c2", userID: "bob"}
	hub.Register(alice)
	hub.Register(bob)
	hub.Join("dream-1", alice)
	// bob is connected but in no room; change notifications still reach him.

	hub.BroadcastAll(context.Background(), []byte(`{}`))
	assert.Len(t, alice.frames, 1)
	assert.Len(t, bob.frames, 1)
}
