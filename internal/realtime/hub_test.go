package realtime

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSender captures delivered events for assertions.
type recordingSender struct {
	mu     sync.Mutex
	events []string
	last   any
	fail   error
}

func (s *recordingSender) Send(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.events = append(s.events, event)
	s.last = payload
	return nil
}

func (s *recordingSender) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func TestBroadcastReachesOnlyRoomMembers(t *testing.T) {
	hub := NewHub(nil)

	a, b, other := &recordingSender{}, &recordingSender{}, &recordingSender{}
	hub.Connect("a", a)
	hub.Connect("b", b)
	hub.Connect("other", other)

	require.NoError(t, hub.Join("a", "workspace:w1"))
	require.NoError(t, hub.Join("b", "workspace:w1"))
	require.NoError(t, hub.Join("other", "workspace:w2"))

	require.NoError(t, hub.Broadcast("workspace:w1", EventDocumentUploaded, DocumentUploadedPayload{UploadedBy: "u1"}))

	assert.Equal(t, []string{EventDocumentUploaded}, a.received())
	assert.Equal(t, []string{EventDocumentUploaded}, b.received())
	assert.Empty(t, other.received())
}

func TestJoinIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	s := &recordingSender{}
	hub.Connect("c1", s)

	require.NoError(t, hub.Join("c1", "workspace:w1"))
	require.NoError(t, hub.Join("c1", "workspace:w1"))

	assert.Equal(t, []string{"workspace:w1"}, hub.RoomsOf("c1"))

	require.NoError(t, hub.Broadcast("workspace:w1", "e", nil))
	assert.Len(t, s.received(), 1, "double join must not double-deliver")
}

func TestLeaveIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	hub.Connect("c1", &recordingSender{})

	require.NoError(t, hub.Leave("c1", "workspace:w1"))

	require.NoError(t, hub.Join("c1", "workspace:w1"))
	require.NoError(t, hub.Leave("c1", "workspace:w1"))
	require.NoError(t, hub.Leave("c1", "workspace:w1"))

	assert.Empty(t, hub.RoomsOf("c1"))
}

func TestNoReplayForLateJoiners(t *testing.T) {
	hub := NewHub(nil)
	early, late := &recordingSender{}, &recordingSender{}
	hub.Connect("early", early)
	hub.Connect("late", late)

	require.NoError(t, hub.Join("early", "workspace:w1"))
	require.NoError(t, hub.Broadcast("workspace:w1", "e", nil))
	require.NoError(t, hub.Join("late", "workspace:w1"))

	assert.Len(t, early.received(), 1)
	assert.Empty(t, late.received())
}

func TestDisconnectReleasesAllRooms(t *testing.T) {
	hub := NewHub(nil)
	s := &recordingSender{}
	hub.Connect("c1", s)

	require.NoError(t, hub.Join("c1", "workspace:w1"))
	require.NoError(t, hub.Join("c1", "analysis:a1"))

	hub.Disconnect("c1")

	assert.Nil(t, hub.RoomsOf("c1"))
	require.NoError(t, hub.Broadcast("workspace:w1", "e", nil))
	require.NoError(t, hub.Broadcast("analysis:a1", "e", nil))
	assert.Empty(t, s.received())

	// Leave and join after disconnect are no-ops, not errors.
	assert.NoError(t, hub.Leave("c1", "workspace:w1"))
	assert.NoError(t, hub.Join("c1", "workspace:w1"))
	require.NoError(t, hub.Broadcast("workspace:w1", "e", nil))
	assert.Empty(t, s.received())
}

func TestMalformedRoomIDs(t *testing.T) {
	hub := NewHub(nil)
	hub.Connect("c1", &recordingSender{})

	for _, room := range []string{"", "w1", "workspace:", "chat:w1", "workspace:a b"} {
		assert.ErrorIs(t, hub.Join("c1", room), ErrInvalidRoom, room)
		assert.ErrorIs(t, hub.Leave("c1", room), ErrInvalidRoom, room)
		assert.ErrorIs(t, hub.Broadcast(room, "e", nil), ErrInvalidRoom, room)
	}

	assert.NoError(t, hub.Join("c1", WorkspaceRoom("w1")))
	assert.NoError(t, hub.Join("c1", AnalysisRoom("a1")))
}

func TestFailedSendDoesNotAbortDelivery(t *testing.T) {
	hub := NewHub(nil)
	broken := &recordingSender{fail: errors.New("connection closed")}
	healthy := &recordingSender{}
	hub.Connect("broken", broken)
	hub.Connect("healthy", healthy)

	require.NoError(t, hub.Join("broken", "workspace:w1"))
	require.NoError(t, hub.Join("healthy", "workspace:w1"))

	require.NoError(t, hub.Broadcast("workspace:w1", "e", nil))

	assert.Len(t, healthy.received(), 1)
}

func TestBroadcastOrderingPerMember(t *testing.T) {
	hub := NewHub(nil)
	s := &recordingSender{}
	hub.Connect("c1", s)
	require.NoError(t, hub.Join("c1", "workspace:w1"))

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Broadcast("workspace:w1", fmt.Sprintf("e%d", i), nil))
	}

	assert.Equal(t, []string{"e0", "e1", "e2", "e3", "e4"}, s.received())
}

func TestConcurrentMembershipAndBroadcast(t *testing.T) {
	hub := NewHub(nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		id := fmt.Sprintf("c%d", i)
		hub.Connect(id, &recordingSender{})
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = hub.Join(id, "workspace:w1")
				_ = hub.Broadcast("workspace:w1", "e", nil)
				_ = hub.Leave(id, "workspace:w1")
			}
			hub.Disconnect(id)
		}(id)
	}
	wg.Wait()

	// All memberships must be released once every connection is gone.
	require.NoError(t, hub.Broadcast("workspace:w1", "e", nil))
}

func TestPresenceExcludesOriginator(t *testing.T) {
	hub := NewHub(nil)
	presence := NewPresence(hub)

	self, peer := &recordingSender{}, &recordingSender{}
	hub.Connect("self", self)
	hub.Connect("peer", peer)
	require.NoError(t, hub.Join("self", WorkspaceRoom("w1")))
	require.NoError(t, hub.Join("peer", WorkspaceRoom("w1")))

	require.NoError(t, presence.Announce("self", "w1", "u1", "Alice"))

	assert.Empty(t, self.received())
	require.Equal(t, []string{EventUserPresence}, peer.received())

	payload, ok := peer.last.(PresencePayload)
	require.True(t, ok)
	assert.Equal(t, "active", payload.Type)
	assert.Equal(t, "u1", payload.UserID)
	assert.Equal(t, "Alice", payload.UserName)
}
