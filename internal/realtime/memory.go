package realtime

import (
	"context"
	"sync"

	"github.com/glotpad/glotpad/internal/store"
)

// Hub is an in-process room broker. It serves the relay-less demo mode and
// tests: every participant on the same host joins through the same Hub.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*hubRoom
}

type hubRoom struct {
	members  map[*hubChannel]struct{}
	presence map[string]Meta // participant key -> latest tracked meta
	refs     map[string]int  // participant key -> open channel count
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*hubRoom)}
}

// Join attaches a participant to a room. key identifies the participant for
// presence and typing echo exclusion.
func (h *Hub) Join(room, key string) Channel {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[room]
	if !ok {
		r = &hubRoom{
			members:  make(map[*hubChannel]struct{}),
			presence: make(map[string]Meta),
			refs:     make(map[string]int),
		}
		h.rooms[room] = r
	}

	c := &hubChannel{hub: h, room: r, key: key, fanout: newFanout()}
	r.members[c] = struct{}{}
	return c
}

type hubChannel struct {
	hub    *Hub
	room   *hubRoom
	key    string
	fanout *fanout

	tracked   bool // guarded by hub.mu; this channel holds one presence ref
	closeOnce sync.Once
}

func (c *hubChannel) Subscribe(buf int) (<-chan Event, func()) {
	return c.fanout.subscribe(buf)
}

func (c *hubChannel) PublishMessage(_ context.Context, m *store.Message) error {
	c.broadcast(Event{Kind: EventMessageInsert, Message: m}, true)
	return nil
}

func (c *hubChannel) PublishDocument(_ context.Context, d *store.Document) error {
	c.broadcast(Event{Kind: EventDocumentUpdate, Document: d}, true)
	return nil
}

func (c *hubChannel) SendTyping(_ context.Context, content string) error {
	c.broadcast(Event{Kind: EventTyping, Typing: &Typing{Content: content}}, false)
	return nil
}

func (c *hubChannel) Track(_ context.Context, meta Meta) error {
	c.hub.mu.Lock()
	c.room.presence[c.key] = meta
	// A channel holds at most one presence ref; a re-track only refreshes
	// the tracked meta.
	if !c.tracked {
		c.tracked = true
		c.room.refs[c.key]++
	}
	c.hub.mu.Unlock()

	c.broadcastPresence()
	return nil
}

func (c *hubChannel) Close() error {
	c.closeOnce.Do(func() {
		c.hub.mu.Lock()
		delete(c.room.members, c)
		if c.tracked {
			c.tracked = false
			if n := c.room.refs[c.key]; n <= 1 {
				delete(c.room.refs, c.key)
				delete(c.room.presence, c.key)
			} else {
				c.room.refs[c.key] = n - 1
			}
		}
		c.hub.mu.Unlock()

		c.broadcastPresence()
	})
	return nil
}

// broadcast delivers evt to the room. includeSelf distinguishes change
// notifications (delivered to everyone) from typing broadcasts (sender
// excluded).
func (c *hubChannel) broadcast(evt Event, includeSelf bool) {
	c.hub.mu.Lock()
	members := make([]*hubChannel, 0, len(c.room.members))
	for m := range c.room.members {
		if !includeSelf && m == c {
			continue
		}
		members = append(members, m)
	}
	c.hub.mu.Unlock()

	for _, m := range members {
		m.fanout.emit(evt)
	}
}

func (c *hubChannel) broadcastPresence() {
	c.hub.mu.Lock()
	snapshot := make(map[string]Meta, len(c.room.presence))
	for k, v := range c.room.presence {
		snapshot[k] = v
	}
	members := make([]*hubChannel, 0, len(c.room.members))
	for m := range c.room.members {
		members = append(members, m)
	}
	c.hub.mu.Unlock()

	evt := Event{Kind: EventPresence, Presence: snapshot}
	for _, m := range members {
		m.fanout.emit(evt)
	}
}
