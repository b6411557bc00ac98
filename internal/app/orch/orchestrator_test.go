package orch_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/app/orch"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id domain.ConnID

	mu      sync.Mutex
	frames  []core.Envelope
	onClose func(string)
	once    sync.Once
}

func (c *fakeConn) ID() domain.ConnID { return c.id }

func (c *fakeConn) TrySend(f core.Frame) error {
	var env core.Envelope
	if err := json.Unmarshal(f, &env); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, env)
	return nil
}

func (c *fakeConn) OnClose(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

func (c *fakeConn) Close(reason string) {
	c.once.Do(func() {
		c.mu.Lock()
		fn := c.onClose
		c.mu.Unlock()
		if fn != nil {
			fn(reason)
		}
	})
}

// take returns and forgets everything received so far.
func (c *fakeConn) take() []core.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.frames
	c.frames = nil
	return out
}

func only(envs []core.Envelope, ev core.Event) []core.Envelope {
	var out []core.Envelope
	for _, e := range envs {
		if e.Event == ev {
			out = append(out, e)
		}
	}
	return out
}

func names(envs []core.Envelope) []core.Event {
	out := make([]core.Event, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Event)
	}
	return out
}

func data[T any](t *testing.T, env core.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type harness struct {
	o *orch.Orchestrator
	m *metrics.Metrics
}

func newHarness() *harness {
	m := metrics.New()
	return &harness{
		o: orch.New(orch.Options{StrictSignaling: false, MaxNameLen: 32, Metrics: m, Watchers: app.NewWatchers()}),
		m: m,
	}
}

func (h *harness) connect(id string) *fakeConn {
	c := &fakeConn{id: domain.ConnID(id)}
	h.o.OnConnect(c)
	c.take()
	return c
}

func TestConnectAnnouncesID(t *testing.T) {
	h := newHarness()
	c := &fakeConn{id: "c1"}

	h.o.OnConnect(c)

	got := c.take()
	require.Len(t, got, 1)
	assert.Equal(t, core.EventConnected, got[0].Event)
	assert.Equal(t, "c1", data[map[string]string](t, got[0])["id"])
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.Connections))
}

func TestSignalingScenario(t *testing.T) {
	h := newHarness()
	c1 := h.connect("c1")
	c2 := h.connect("c2")

	// A: first joiner is acknowledged alone.
	require.NoError(t, h.o.OnJoin("c1", "r1", "Alice", "monitor"))
	got := c1.take()
	assert.Equal(t, []core.Event{core.EventUsersUpdate, core.EventJoinedSuccess}, names(got))
	ack := data[app.JoinedSuccess](t, only(got, core.EventJoinedSuccess)[0])
	assert.Equal(t, domain.RoomName("r1"), ack.Room)
	assert.Equal(t, 1, ack.UsersCount)

	// B: second joiner; the first learns about it, the second does not hear of itself.
	require.NoError(t, h.o.OnJoin("c2", "r1", "Bob", "participant"))
	got1, got2 := c1.take(), c2.take()

	joined := only(got1, core.EventUserJoined)
	require.Len(t, joined, 1)
	uj := data[app.UserJoined](t, joined[0])
	assert.Equal(t, "Bob", uj.Name)
	assert.Equal(t, "participant", uj.Type)
	assert.Equal(t, domain.ConnID("c2"), uj.ID)
	assert.Len(t, data[[]domain.MemberView](t, only(got1, core.EventUsersUpdate)[0]), 2)

	assert.Empty(t, only(got2, core.EventUserJoined))
	assert.Equal(t, 2, data[app.JoinedSuccess](t, only(got2, core.EventJoinedSuccess)[0]).UsersCount)
	views := data[[]domain.MemberView](t, only(got2, core.EventUsersUpdate)[0])
	require.Len(t, views, 2)
	assert.Equal(t, "Alice", views[0].Name)
	assert.Equal(t, "monitor", views[0].Type)
	assert.Equal(t, "Bob", views[1].Name)

	// C: an offer reaches the other member only.
	require.NoError(t, h.o.OnOffer("c1", "r1", json.RawMessage(`{"type":"offer","sdp":"v=0"}`), "Alice"))
	assert.Empty(t, c1.take())
	offers := only(c2.take(), core.EventOffer)
	require.Len(t, offers, 1)
	relayed := data[app.RelayedOffer](t, offers[0])
	assert.Equal(t, domain.ConnID("c1"), relayed.FromID)
	assert.Equal(t, "Alice", relayed.From)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(relayed.Offer))

	// D: transport drops c2.
	c2.Close("transport-closed")
	got1 = c1.take()
	left := only(got1, core.EventUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "Bob", data[app.UserLeft](t, left[0]).Name)
	update := only(got1, core.EventUsersUpdate)
	require.Len(t, update, 1)
	assert.Len(t, data[[]domain.MemberView](t, update[0]), 1)

	snap := h.o.Rooms.Snapshot("r1")
	require.Len(t, snap, 1)
	assert.Equal(t, domain.ConnID("c1"), snap[0].ConnID)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.Disconnects.WithLabelValues("transport-closed")))
}

func TestJoinValidation(t *testing.T) {
	h := newHarness()
	c1 := h.connect("c1")

	assert.ErrorIs(t, h.o.OnJoin("c1", "", "Alice", "monitor"), domain.ErrInvalidRequest)
	assert.ErrorIs(t, h.o.OnJoin("c1", "r1", "", "monitor"), domain.ErrInvalidRequest)
	err := h.o.OnJoin("c1", "r1", "a-name-that-is-definitely-longer-than-32", "monitor")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.ErrorIs(t, err, domain.ErrNameTooLong)

	assert.Empty(t, c1.take())
	assert.Empty(t, h.o.Rooms.List())
}

func TestJoinLimitsCountCharacters(t *testing.T) {
	h := newHarness()
	h.connect("c1")
	h.connect("c2")

	name := strings.Repeat("م", 20)
	require.NoError(t, h.o.OnJoin("c1", "r1", name, "participant"))
	snap := h.o.Rooms.Snapshot("r1")
	require.Len(t, snap, 1)
	assert.Equal(t, name, snap[0].Name)

	room := domain.RoomName(strings.Repeat("غ", 100))
	require.NoError(t, h.o.OnJoin("c2", room, "Bob", "participant"))
	assert.Len(t, h.o.Rooms.Snapshot(room), 1)

	err := h.o.OnJoin("c1", "r1", strings.Repeat("م", 33), "participant")
	assert.ErrorIs(t, err, domain.ErrNameTooLong)
	assert.ErrorIs(t, h.o.OnJoin("c1", domain.RoomName(strings.Repeat("غ", 129)), "Alice", ""), domain.ErrInvalidRequest)
}

func TestRejoinIsIdempotent(t *testing.T) {
	h := newHarness()
	h.connect("c1")

	for i := 0; i < 3; i++ {
		require.NoError(t, h.o.OnJoin("c1", "r1", fmt.Sprintf("Alice-%d", i), "monitor"))
	}

	snap := h.o.Rooms.Snapshot("r1")
	require.Len(t, snap, 1)
	assert.Equal(t, "Alice-2", snap[0].Name)
}

func TestLeave(t *testing.T) {
	h := newHarness()
	c1 := h.connect("c1")
	c2 := h.connect("c2")
	require.NoError(t, h.o.OnJoin("c1", "r1", "Alice", "monitor"))
	require.NoError(t, h.o.OnJoin("c2", "r1", "Bob", "participant"))
	c1.take()
	c2.take()

	require.NoError(t, h.o.OnLeave("c2", "r1"))

	got1, got2 := c1.take(), c2.take()
	assert.ElementsMatch(t, []core.Event{core.EventUsersUpdate, core.EventUserLeft}, names(got1))
	assert.Equal(t, []core.Event{core.EventUsersUpdate}, names(got2), "leaver sees the update but not its own departure")
	assert.Len(t, data[[]domain.MemberView](t, got2[0]), 1)

	t.Run("not a member", func(t *testing.T) {
		before := h.o.Rooms.Snapshot("r1")
		require.NoError(t, h.o.OnLeave("c2", "r1"))
		require.NoError(t, h.o.OnLeave("c2", "nowhere"))
		assert.Empty(t, c1.take())
		assert.Empty(t, c2.take())
		assert.Equal(t, before, h.o.Rooms.Snapshot("r1"))
	})

	t.Run("missing room", func(t *testing.T) {
		assert.ErrorIs(t, h.o.OnLeave("c2", ""), domain.ErrInvalidRequest)
	})

	t.Run("last member reclaims room", func(t *testing.T) {
		require.NoError(t, h.o.OnLeave("c1", "r1"))
		assert.Empty(t, h.o.Rooms.List())
	})
}

func TestDisconnectSweepsEveryRoom(t *testing.T) {
	h := newHarness()
	c1 := h.connect("c1")
	c2 := h.connect("c2")
	c3 := h.connect("c3")
	require.NoError(t, h.o.OnJoin("c1", "r1", "Alice", "monitor"))
	require.NoError(t, h.o.OnJoin("c3", "r2", "Carol", "monitor"))
	require.NoError(t, h.o.OnJoin("c2", "r1", "Bob", "participant"))
	require.NoError(t, h.o.OnJoin("c2", "r2", "Bob", "participant"))
	c1.take()
	c3.take()

	c2.Close("ping-timeout")

	for _, c := range []*fakeConn{c1, c3} {
		got := c.take()
		assert.Len(t, only(got, core.EventUserLeft), 1)
		assert.Len(t, only(got, core.EventUsersUpdate), 1)
	}
	assert.Empty(t, h.o.Rooms.RoomsOf("c2"))
	_, live := h.o.Sessions.Get("c2")
	assert.False(t, live)

	t.Run("second notification is harmless", func(t *testing.T) {
		h.o.OnDisconnect("c2", "ping-timeout")
		assert.Empty(t, c1.take())
		assert.Equal(t, 1.0, testutil.ToFloat64(h.m.Disconnects.WithLabelValues("ping-timeout")))
	})

	t.Run("connection in no room", func(t *testing.T) {
		idle := h.connect("idle")
		assert.NotPanics(t, func() { idle.Close("client-closed") })
	})
}

func TestRequestNewOfferIsDirected(t *testing.T) {
	h := newHarness()
	c1 := h.connect("c1")
	c2 := h.connect("c2")
	c3 := h.connect("c3")
	for id, name := range map[domain.ConnID]string{"c1": "Alice", "c2": "Bob", "c3": "Carol"} {
		require.NoError(t, h.o.OnJoin(id, "r1", name, "participant"))
	}
	c1.take()
	c2.take()
	c3.take()

	require.NoError(t, h.o.OnRequestNewOffer("c2", "c1"))
	assert.Equal(t, []core.Event{core.EventRecreateOffer}, names(c1.take()))
	assert.Empty(t, c2.take())
	assert.Empty(t, c3.take())

	require.NoError(t, h.o.OnRequestNewOffer("c2", "gone"))
}

func TestConcurrentRoomsProceedIndependently(t *testing.T) {
	h := newHarness()
	const n = 40
	conns := make([]*fakeConn, n)
	for i := range conns {
		conns[i] = h.connect(fmt.Sprintf("c%d", i))
	}

	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func(i int, c *fakeConn) {
			defer wg.Done()
			room := domain.RoomName(fmt.Sprintf("r%d", i%5))
			assert.NoError(t, h.o.OnJoin(c.id, room, string(c.id), "participant"))
			assert.NoError(t, h.o.OnCandidate(c.id, room, json.RawMessage(`{"candidate":""}`)))
			if i%2 == 0 {
				c.Close("client-closed")
			}
		}(i, c)
	}
	wg.Wait()

	rooms, members := h.o.Rooms.Stats()
	assert.Equal(t, 5, rooms)
	assert.Equal(t, n/2, members)
	assert.Equal(t, n/2, h.o.Sessions.Count())
}
