// Package realtime carries the per-room publish/subscribe contract: row
// insert notifications for chat messages, row update notifications for the
// shared document, ephemeral typing broadcasts and presence snapshots.
//
// Two implementations exist: an in-process Hub for relay-less single-host
// use and tests, and WSChannel speaking JSON envelopes to a websocket relay.
package realtime

import (
	"context"
	"sync"

	"github.com/glotpad/glotpad/internal/store"
)

// EventKind discriminates channel events.
type EventKind string

const (
	EventMessageInsert  EventKind = "message_insert"
	EventDocumentUpdate EventKind = "document_update"
	EventTyping         EventKind = "typing"
	EventPresence       EventKind = "presence"
)

// Meta is the metadata tracked for a participant key.
type Meta struct {
	User     string `json:"user"`
	JoinedAt string `json:"joined_at"`
}

// Typing is the ephemeral broadcast payload: the full current document text.
type Typing struct {
	Content string `json:"content"`
}

// Event is one delivery from the room.
type Event struct {
	Kind     EventKind
	Message  *store.Message
	Document *store.Document
	Typing   *Typing
	Presence map[string]Meta
}

// Channel is one participant's handle on a room.
//
// PublishMessage and PublishDocument fan out to every subscriber in the room
// including the sender (change notifications are not echo-filtered; the sync
// engine's origin filter handles the sender's own copy). SendTyping excludes
// the sender, matching broadcast self=false semantics.
type Channel interface {
	Subscribe(buf int) (<-chan Event, func())
	PublishMessage(ctx context.Context, m *store.Message) error
	PublishDocument(ctx context.Context, d *store.Document) error
	SendTyping(ctx context.Context, content string) error
	Track(ctx context.Context, meta Meta) error
	Close() error
}

// fanout distributes events to local subscribers, dropping on full buffers
// like the bus does.
type fanout struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newFanout() *fanout {
	return &fanout{subs: make(map[int]chan Event)}
}

func (f *fanout) subscribe(buf int) (<-chan Event, func()) {
	ch := make(chan Event, buf)
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()
	return ch, func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fanout) emit(evt Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
