package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, driverID string) *Client {
	return NewClient(driverID, nil, hub, nil, nil, nil, nil)
}

func recvEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var event Event
		require.NoError(t, json.Unmarshal(payload, &event))
		return event
	case <-time.After(time.Second):
		t.Fatalf("no event delivered to %s", c.DriverID)
		return Event{}
	}
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == want
	}, time.Second, 5*time.Millisecond)
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c1 := newTestClient(hub, "D1")
	hub.register <- c1
	waitForCount(t, hub, 1)
	assert.True(t, hub.IsDriverConnected("D1"))

	c2 := newTestClient(hub, "D2")
	hub.register <- c2
	waitForCount(t, hub, 2)

	hub.unregister <- c1
	waitForCount(t, hub, 1)
	assert.False(t, hub.IsDriverConnected("D1"))
	assert.True(t, hub.IsDriverConnected("D2"))
}

func TestHubBroadcastReachesEverySession(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	clients := []*Client{
		newTestClient(hub, "D1"),
		newTestClient(hub, "D2"),
		newTestClient(hub, "D3"),
	}
	for _, c := range clients {
		hub.register <- c
	}
	waitForCount(t, hub, 3)

	hub.BroadcastAll("rideRequest", map[string]interface{}{"rideId": "R1"})

	// Global fan-out: every session gets the event, including any session the
	// payload is not about.
	for _, c := range clients {
		event := recvEvent(t, c)
		assert.Equal(t, "rideRequest", event.Type)
		data, ok := event.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "R1", data["rideId"])
	}
}

func TestHubSecondLoginReplacesFirstSession(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	first := newTestClient(hub, "D1")
	hub.register <- first
	waitForCount(t, hub, 1)

	second := newTestClient(hub, "D1")
	hub.register <- second
	waitForCount(t, hub, 1)

	// The first session's channel is closed so its write pump shuts down
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-first.send:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	hub.BroadcastAll("rideDeclined", map[string]interface{}{"rideId": "R1"})
	event := recvEvent(t, second)
	assert.Equal(t, "rideDeclined", event.Type)
}

func TestPingAfterSessionReplacementIsDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	first := newTestClient(hub, "D1")
	hub.register <- first
	waitForCount(t, hub, 1)

	second := newTestClient(hub, "D1")
	hub.register <- second
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-first.send:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// The replaced session's read pump can still be handling a ping; the
	// enqueue drops it instead of sending on the closed channel.
	require.NotPanics(t, func() {
		pong, _ := json.Marshal(Event{Type: "pong"})
		first.enqueue(pong)
	})

	hub.BroadcastAll("rideRequest", map[string]interface{}{"rideId": "R1"})
	event := recvEvent(t, second)
	assert.Equal(t, "rideRequest", event.Type)
}

func TestHubDropsSessionWithFullBuffer(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	stuck := newTestClient(hub, "D1")
	healthy := newTestClient(hub, "D2")
	hub.register <- stuck
	hub.register <- healthy
	waitForCount(t, hub, 2)

	// Fill the stuck client's buffer so the next fan-out cannot enqueue
	for i := 0; i < cap(stuck.send); i++ {
		stuck.send <- []byte("{}")
	}

	hub.BroadcastAll("rideCompleted", map[string]interface{}{"rideId": "R1"})

	waitForCount(t, hub, 1)
	assert.False(t, hub.IsDriverConnected("D1"))
	assert.True(t, hub.IsDriverConnected("D2"))

	event := recvEvent(t, healthy)
	assert.Equal(t, "rideCompleted", event.Type)
}
