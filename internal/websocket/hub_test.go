package websocket

import (
	"sort"
	"testing"
	"time"
)

func testClient(id, roomID string) *WSClient {
	return &WSClient{
		ID:      id,
		RoomID:  roomID,
		Message: make(chan *WSMessage, 8),
		done:    make(chan struct{}),
	}
}

func waitForMessage(t *testing.T, ch chan *WSMessage) *WSMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestEnsureRoomIsIdempotent(t *testing.T) {
	hub := NewHub()

	if created := hub.EnsureRoom("tenant:t1"); !created {
		t.Fatal("first ensure must create the room")
	}
	if created := hub.EnsureRoom("tenant:t1"); created {
		t.Fatal("second ensure must report the room already exists")
	}

	ids := hub.RoomIDs()
	if len(ids) != 1 || ids[0] != "tenant:t1" {
		t.Fatalf("rooms = %v", ids)
	}
}

func TestBroadcastReachesOnlyTheRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	hub.EnsureRoom("tenant:t1")
	hub.EnsureRoom("tenant:t2")

	a := testClient("client-a", "tenant:t1")
	b := testClient("client-b", "tenant:t1")
	c := testClient("client-c", "tenant:t2")
	hub.Register <- a
	hub.Register <- b
	hub.Register <- c

	hub.Broadcast <- &WSMessage{
		Event:  "status_change",
		Data:   map[string]string{"status": "connected"},
		RoomID: "tenant:t1",
	}

	for _, client := range []*WSClient{a, b} {
		msg := waitForMessage(t, client.Message)
		if msg.Event != "status_change" {
			t.Fatalf("event = %q", msg.Event)
		}
	}

	select {
	case msg := <-c.Message:
		t.Fatalf("client in another room received %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastToUnknownRoomIsNoOp(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	hub.EnsureRoom("tenant:t1")
	a := testClient("client-a", "tenant:t1")
	hub.Register <- a

	hub.Broadcast <- &WSMessage{Event: "qr", RoomID: "tenant:ghost"}
	hub.Broadcast <- &WSMessage{Event: "qr", RoomID: "tenant:t1"}

	msg := waitForMessage(t, a.Message)
	if msg.RoomID != "tenant:t1" {
		t.Fatalf("room = %q, message for an unknown room leaked through", msg.RoomID)
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	hub.EnsureRoom("tenant:t1")
	a := testClient("client-a", "tenant:t1")
	b := testClient("client-b", "tenant:t1")
	hub.Register <- a
	hub.Register <- b

	hub.Unregister <- a

	// The unregistered client's channel is closed by the hub.
	if _, open := <-a.Message; open {
		t.Fatal("unregistered client channel must be closed")
	}

	hub.Broadcast <- &WSMessage{Event: "incoming_message", RoomID: "tenant:t1"}
	msg := waitForMessage(t, b.Message)
	if msg.Event != "incoming_message" {
		t.Fatalf("event = %q", msg.Event)
	}
}

func TestBroadcastDropsSlowClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	hub.EnsureRoom("tenant:t1")
	slow := &WSClient{
		ID:      "slow",
		RoomID:  "tenant:t1",
		Message: make(chan *WSMessage), // unbuffered, nobody reading
		done:    make(chan struct{}),
	}
	fast := testClient("fast", "tenant:t1")
	hub.Register <- slow
	hub.Register <- fast

	hub.Broadcast <- &WSMessage{Event: "qr", RoomID: "tenant:t1"}

	if msg := waitForMessage(t, fast.Message); msg.Event != "qr" {
		t.Fatalf("event = %q", msg.Event)
	}

	// The fast client got the message, so the broadcast is done and the
	// slow client's channel has been closed on eviction.
	if _, open := <-slow.Message; open {
		t.Fatal("slow client must be evicted with a closed channel")
	}

	hub.Broadcast <- &WSMessage{Event: "qr", RoomID: "tenant:t1"}
	if msg := waitForMessage(t, fast.Message); msg.Event != "qr" {
		t.Fatalf("event = %q", msg.Event)
	}
}

func TestRoomIDsSnapshot(t *testing.T) {
	hub := NewHub()
	hub.EnsureRoom("tenant:t1")
	hub.EnsureRoom("conversation:c1")

	ids := hub.RoomIDs()
	sort.Strings(ids)
	want := []string{"conversation:c1", "tenant:t1"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}
