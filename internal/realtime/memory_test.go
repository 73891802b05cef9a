package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/glotpad/glotpad/internal/store"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel event")
		return Event{}
	}
}

func TestHubMessageInsertReachesEveryone(t *testing.T) {
	hub := NewHub()
	a := hub.Join("room", "alice")
	b := hub.Join("room", "bob")

	chA, unsubA := a.Subscribe(10)
	defer unsubA()
	chB, unsubB := b.Subscribe(10)
	defer unsubB()

	msg := &store.Message{MsgID: "m1", Content: "hi", UserName: "alice", CreatedAt: 1000}
	if err := a.PublishMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	// Change notifications are not echo-filtered: both sides receive them.
	for _, ch := range []<-chan Event{chA, chB} {
		evt := recvEvent(t, ch)
		if evt.Kind != EventMessageInsert || evt.Message.MsgID != "m1" {
			t.Errorf("got %+v, want message_insert m1", evt)
		}
	}
}

func TestHubTypingExcludesSender(t *testing.T) {
	hub := NewHub()
	a := hub.Join("room", "alice")
	b := hub.Join("room", "bob")

	chA, unsubA := a.Subscribe(10)
	defer unsubA()
	chB, unsubB := b.Subscribe(10)
	defer unsubB()

	if err := a.SendTyping(context.Background(), "Hello"); err != nil {
		t.Fatal(err)
	}

	evt := recvEvent(t, chB)
	if evt.Kind != EventTyping || evt.Typing.Content != "Hello" {
		t.Errorf("got %+v, want typing Hello", evt)
	}

	select {
	case evt := <-chA:
		t.Errorf("sender received own typing echo: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRoomsAreIsolated(t *testing.T) {
	hub := NewHub()
	a := hub.Join("room-1", "alice")
	b := hub.Join("room-2", "bob")

	chB, unsubB := b.Subscribe(10)
	defer unsubB()

	if err := a.PublishMessage(context.Background(), &store.Message{MsgID: "m1"}); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-chB:
		t.Errorf("event leaked across rooms: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPresenceTrackAndLeave(t *testing.T) {
	hub := NewHub()
	a := hub.Join("room", "alice")
	b := hub.Join("room", "bob")

	chA, unsubA := a.Subscribe(10)
	defer unsubA()

	ctx := context.Background()
	if err := a.Track(ctx, Meta{User: "alice"}); err != nil {
		t.Fatal(err)
	}
	evt := recvEvent(t, chA)
	if evt.Kind != EventPresence || len(evt.Presence) != 1 {
		t.Fatalf("after first track: %+v, want 1 key", evt)
	}

	if err := b.Track(ctx, Meta{User: "bob"}); err != nil {
		t.Fatal(err)
	}
	evt = recvEvent(t, chA)
	if len(evt.Presence) != 2 {
		t.Fatalf("after second track: %d keys, want 2", len(evt.Presence))
	}

	// bob leaves; the snapshot shrinks back to one key.
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	evt = recvEvent(t, chA)
	if len(evt.Presence) != 1 {
		t.Errorf("after leave: %d keys, want 1", len(evt.Presence))
	}
	if _, ok := evt.Presence["alice"]; !ok {
		t.Errorf("remaining key = %v, want alice", evt.Presence)
	}
}

func TestHubRetrackRefreshesMetaWithoutLeaking(t *testing.T) {
	hub := NewHub()
	a := hub.Join("room", "alice")
	watcher := hub.Join("room", "bob")

	ch, unsub := watcher.Subscribe(10)
	defer unsub()

	ctx := context.Background()
	_ = a.Track(ctx, Meta{User: "alice", JoinedAt: "t1"})
	recvEvent(t, ch)

	// A re-track from the same channel updates the meta in place.
	_ = a.Track(ctx, Meta{User: "alice", JoinedAt: "t2"})
	evt := recvEvent(t, ch)
	if got := evt.Presence["alice"].JoinedAt; got != "t2" {
		t.Fatalf("re-track meta = %q, want t2", got)
	}
	if len(evt.Presence) != 1 {
		t.Fatalf("re-track grew the snapshot: %d keys", len(evt.Presence))
	}

	// One Close must fully release the key despite the double Track.
	_ = a.Close()
	evt = recvEvent(t, ch)
	if len(evt.Presence) != 0 {
		t.Errorf("key leaked after close: %v", evt.Presence)
	}
}

func TestHubSameKeyTwoConnections(t *testing.T) {
	hub := NewHub()
	a1 := hub.Join("room", "alice")
	a2 := hub.Join("room", "alice")
	watcher := hub.Join("room", "bob")

	ch, unsub := watcher.Subscribe(10)
	defer unsub()

	ctx := context.Background()
	_ = a1.Track(ctx, Meta{User: "alice"})
	recvEvent(t, ch)
	_ = a2.Track(ctx, Meta{User: "alice"})
	evt := recvEvent(t, ch)
	if len(evt.Presence) != 1 {
		t.Fatalf("two connections, one key: %d keys, want 1", len(evt.Presence))
	}

	// First connection closing must not drop the key while the second is up.
	_ = a1.Close()
	evt = recvEvent(t, ch)
	if _, ok := evt.Presence["alice"]; !ok {
		t.Errorf("key dropped while a connection remains: %v", evt.Presence)
	}

	_ = a2.Close()
	evt = recvEvent(t, ch)
	if len(evt.Presence) != 0 {
		t.Errorf("after both closed: %v, want empty", evt.Presence)
	}
}
