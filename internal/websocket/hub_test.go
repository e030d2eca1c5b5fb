package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tile-duel/internal/domain"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func newTestClient(id string) *Client {
	return &Client{
		id:   id,
		send: make(chan []byte, 16),
	}
}

func recvMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	hub := newTestHub(t)

	subscriber := newTestClient("c1")
	bystander := newTestClient("c2")

	hub.Register(subscriber)
	hub.Register(bystander)
	hub.Subscribe(subscriber, "match-1")
	hub.Subscribe(bystander, "match-2")

	waitFor(t, func() bool { return hub.GetSubscriberCount("match-1") == 1 })

	view := &domain.MatchView{ID: "match-1", Status: domain.StatusActive}
	hub.BroadcastMatchUpdate("match-1", view)

	msg := recvMessage(t, subscriber)
	assert.Equal(t, MessageTypeMatchUpdate, msg.Type)
	assert.Equal(t, "match-1", msg.MatchID)

	select {
	case <-bystander.send:
		t.Fatal("bystander received an update for a match it never subscribed to")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := newTestHub(t)

	client := newTestClient("c1")
	hub.Register(client)
	hub.Subscribe(client, "match-1")
	waitFor(t, func() bool { return hub.GetSubscriberCount("match-1") == 1 })

	hub.Unsubscribe(client, "match-1")
	waitFor(t, func() bool { return hub.GetSubscriberCount("match-1") == 0 })
}

func TestHubUnregisterClosesClient(t *testing.T) {
	hub := newTestHub(t)

	client := newTestClient("c1")
	hub.Register(client)
	hub.Subscribe(client, "match-1")
	waitFor(t, func() bool { return hub.GetTotalConnections() == 1 })

	hub.Unregister(client)
	waitFor(t, func() bool { return hub.GetTotalConnections() == 0 })

	// The hub closes the send channel and drops all subscriptions.
	_, open := <-client.send
	assert.False(t, open)
	assert.Equal(t, 0, hub.GetSubscriberCount("match-1"))
}
