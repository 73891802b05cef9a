package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/glotpad/glotpad/internal/bus"
	"github.com/glotpad/glotpad/internal/doc"
	"github.com/glotpad/glotpad/internal/identity"
	"github.com/glotpad/glotpad/internal/lock"
	"github.com/glotpad/glotpad/internal/presence"
	"github.com/glotpad/glotpad/internal/realtime"
	"github.com/glotpad/glotpad/internal/status"
	"github.com/glotpad/glotpad/internal/store"
	intsync "github.com/glotpad/glotpad/internal/sync"
	"github.com/glotpad/glotpad/internal/translate"
)

type echoBackend struct{}

func (echoBackend) BatchLocalize(_ context.Context, req translate.BatchRequest) ([]string, error) {
	out := make([]string, len(req.TargetLocales))
	for i, loc := range req.TargetLocales {
		out[i] = loc + ":" + req.Text
	}
	return out, nil
}

// participant is one fully assembled daemon-side stack sharing a hub room.
type participant struct {
	bus     *bus.Bus
	engine  *intsync.Engine
	collab  *doc.Collab
	tracker *presence.Tracker
}

func newParticipant(t *testing.T, hub *realtime.Hub, name string) *participant {
	t.Helper()

	dir := t.TempDir()
	lk, err := lock.Acquire(dir)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	t.Cleanup(func() { _ = lk.Release() })

	db, err := store.Open(filepath.Join(dir, "glotpad.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	b := bus.New()
	prof := identity.Profile{Name: name, PreferredLanguage: "en"}
	ch := hub.Join("workspace", prof.Key())
	tr := translate.New(translate.NewGlossary(), translate.NewCache(64, time.Hour), echoBackend{}, zap.NewNop())

	p := &participant{
		bus: b,
		engine: intsync.NewEngine(intsync.Options{
			DB:           db,
			Channel:      ch,
			Translator:   tr,
			Bus:          b,
			Profile:      prof,
			SourceLocale: "en",
			Targets:      []string{"es"},
			PollInterval: time.Hour,
		}),
		collab:  doc.NewCollab(db, ch, b, zap.NewNop(), 50*time.Millisecond),
		tracker: presence.NewTracker(ch, prof.Key(), b, zap.NewNop()),
	}

	ctx := context.Background()
	if err := p.engine.Start(ctx); err != nil {
		t.Fatalf("engine start: %v", err)
	}
	t.Cleanup(p.engine.Stop)
	if err := p.collab.Start(ctx); err != nil {
		t.Fatalf("collab start: %v", err)
	}
	t.Cleanup(p.collab.Stop)
	if err := p.tracker.Start(ctx); err != nil {
		t.Fatalf("tracker start: %v", err)
	}
	t.Cleanup(p.tracker.Stop)

	return p
}

func waitKind(t *testing.T, ch <-chan bus.Event, kind string) bus.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Kind == kind {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func TestTwoParticipantsEndToEnd(t *testing.T) {
	hub := realtime.NewHub()
	alice := newParticipant(t, hub, "alice")
	bob := newParticipant(t, hub, "bob")

	bobMsgs, unsubMsgs := bob.bus.Subscribe("message.", 32)
	defer unsubMsgs()
	bobDocs, unsubDocs := bob.bus.Subscribe("doc.", 32)
	defer unsubDocs()

	// Chat: alice's send reaches bob exactly once, and never echoes back
	// into alice's stream as a second copy.
	alice.engine.Send(context.Background(), "hello bob")
	merged := waitKind(t, bobMsgs, bus.KindMessageMerged).Payload.(store.Message)
	if merged.Content != "hello bob" || merged.UserName != "alice" {
		t.Fatalf("merged = %+v", merged)
	}
	if merged.Translations["es"] != "es:hello bob" {
		t.Fatalf("translations = %v", merged.Translations)
	}

	time.Sleep(100 * time.Millisecond)
	if n := len(alice.engine.History()); n != 1 {
		t.Fatalf("alice history = %d, want 1", n)
	}
	if n := len(bob.engine.History()); n != 1 {
		t.Fatalf("bob history = %d, want 1", n)
	}

	// Document: alice types, bob adopts the text; alice's snapshot fires.
	aliceDocs, unsubAlice := alice.bus.Subscribe(bus.KindDocSaved, 8)
	defer unsubAlice()
	alice.collab.Edit(context.Background(), "shared draft")
	waitKind(t, bobDocs, bus.KindDocUpdated)
	if got := bob.collab.Content(); got != "shared draft" {
		t.Fatalf("bob content = %q", got)
	}
	waitKind(t, aliceDocs, bus.KindDocSaved)

	// Presence: both trackers settle on two participants.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if alice.tracker.Count() == 2 && bob.tracker.Count() == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("presence = alice:%d bob:%d, want 2/2",
		alice.tracker.Count(), bob.tracker.Count())
}

func TestStartupStateWithoutRelay(t *testing.T) {
	b := bus.New()
	machine := status.NewMachine(b)

	if err := machine.Transition(status.Connecting); err != nil {
		t.Fatalf("connecting: %v", err)
	}
	if err := machine.Transition(status.PollOnly); err != nil {
		t.Fatalf("poll only: %v", err)
	}
	if got := machine.Current(); got != status.PollOnly {
		t.Fatalf("state = %s", got)
	}
}
