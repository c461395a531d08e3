package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(id, userID string, buf int) *Client {
	return &Client{ID: id, UserID: userID, Events: make(chan Event, buf)}
}

func TestHubSendToUser(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := newClient("a", "u-1", 4)
	b := newClient("b", "u-2", 4)
	h.Register(a)
	h.Register(b)
	assert.Equal(t, 2, h.Count())

	h.PublishJSON("u-1", "notification", map[string]string{"title": "Job completed"})

	require.Len(t, a.Events, 1)
	ev := <-a.Events
	assert.Equal(t, "notification", ev.EventType)
	assert.JSONEq(t, `{"title":"Job completed"}`, ev.Data)
	assert.Len(t, b.Events, 0)
}

func TestHubBroadcastSkipsFullClients(t *testing.T) {
	h := NewHub(zap.NewNop())
	full := newClient("full", "u-1", 1)
	h.Register(full)
	h.Register(newClient("ok", "u-2", 4))

	h.Broadcast(Event{EventType: "ping", Data: "1"})
	h.Broadcast(Event{EventType: "ping", Data: "2"})

	assert.Len(t, full.Events, 1)
}

func TestHubUnregisterClosesChannel(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := newClient("a", "u-1", 1)
	h.Register(c)
	h.Unregister("a")
	h.Unregister("a")

	_, ok := <-c.Events
	assert.False(t, ok)
	assert.Equal(t, 0, h.Count())
}
