package presence

import (
	"context"
	"testing"
	"time"

	"github.com/glotpad/glotpad/internal/bus"
	"github.com/glotpad/glotpad/internal/realtime"
)

func startTracker(t *testing.T, hub *realtime.Hub, key string) (*Tracker, *bus.Bus) {
	t.Helper()
	b := bus.New()
	tr := NewTracker(hub.Join("workspace", key), key, b, nil)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(tr.Stop)
	return tr, b
}

func waitCount(t *testing.T, ch <-chan bus.Event, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-ch:
			if n, ok := evt.Payload.(int); ok && n == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for count %d", want)
		}
	}
}

func TestAloneCountsAsOne(t *testing.T) {
	tr, _ := startTracker(t, realtime.NewHub(), "alice")
	time.Sleep(50 * time.Millisecond)
	if got := tr.Count(); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}

func TestJoinAndLeave(t *testing.T) {
	hub := realtime.NewHub()
	tr, b := startTracker(t, hub, "alice")
	counts, unsub := b.Subscribe(bus.KindPresenceCount, 16)
	defer unsub()

	bobChan := hub.Join("workspace", "bob")
	if err := bobChan.Track(context.Background(), realtime.Meta{User: "bob"}); err != nil {
		t.Fatalf("track: %v", err)
	}
	waitCount(t, counts, 2)

	if err := bobChan.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	waitCount(t, counts, 1)
	if got := tr.Count(); got != 1 {
		t.Fatalf("count after leave = %d, want 1", got)
	}
}

func TestSameKeyCountsOnce(t *testing.T) {
	hub := realtime.NewHub()
	tr, b := startTracker(t, hub, "alice")
	counts, unsub := b.Subscribe(bus.KindPresenceCount, 16)
	defer unsub()

	// Bob opens two windows under one key.
	first := hub.Join("workspace", "bob")
	second := hub.Join("workspace", "bob")
	if err := first.Track(context.Background(), realtime.Meta{User: "bob"}); err != nil {
		t.Fatalf("track: %v", err)
	}
	if err := second.Track(context.Background(), realtime.Meta{User: "bob"}); err != nil {
		t.Fatalf("track: %v", err)
	}
	waitCount(t, counts, 2)

	// One window closing keeps bob present.
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := tr.Count(); got != 2 {
		t.Fatalf("count = %d, want 2 while a window remains", got)
	}
}

func TestCountNeverDropsBelowOne(t *testing.T) {
	tr, _ := startTracker(t, realtime.NewHub(), "alice")
	tr.apply(map[string]realtime.Meta{})
	if got := tr.Count(); got != 1 {
		t.Fatalf("count = %d, want clamp to 1", got)
	}
}
