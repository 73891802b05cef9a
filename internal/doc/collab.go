// Package doc runs the shared document: ephemeral whole-text broadcasts on
// every keystroke and a debounced durable snapshot once the typing quiets
// down. The last broadcast observed wins; there is no merge and no causal
// ordering between concurrent editors.
package doc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glotpad/glotpad/internal/bus"
	"github.com/glotpad/glotpad/internal/realtime"
	"github.com/glotpad/glotpad/internal/store"
)

// Collab owns the local view of the shared document.
type Collab struct {
	db      *store.DB
	channel realtime.Channel
	bus     *bus.Bus
	logger  *zap.Logger
	quiet   time.Duration

	mu           sync.Mutex
	content      string
	translations map[string]string
	timer        *time.Timer

	cancel context.CancelFunc
}

// NewCollab builds a collaborator with the given debounce window.
func NewCollab(db *store.DB, ch realtime.Channel, b *bus.Bus, logger *zap.Logger, quiet time.Duration) *Collab {
	if logger == nil {
		logger = zap.NewNop()
	}
	if quiet <= 0 {
		quiet = time.Second
	}
	return &Collab{
		db:           db,
		channel:      ch,
		bus:          b,
		logger:       logger.Named("doc"),
		quiet:        quiet,
		translations: map[string]string{},
	}
}

// Start ensures the durable row exists, loads it and begins consuming
// channel events.
func (c *Collab) Start(ctx context.Context) error {
	if err := c.db.EnsureDocument(); err != nil {
		return err
	}
	row, err := c.db.GetDocument()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.content = row.Content
	if row.Translations != nil {
		c.translations = row.Translations
	}
	c.mu.Unlock()

	ctx, c.cancel = context.WithCancel(ctx)
	events, unsub := c.channel.Subscribe(64)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-events:
				c.handle(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop cancels the event loop and any pending snapshot.
func (c *Collab) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}

// Content returns the current text.
func (c *Collab) Content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// Translations returns a copy of the current translation mapping.
func (c *Collab) Translations() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.translations))
	for k, v := range c.translations {
		out[k] = v
	}
	return out
}

// Edit replaces the local text, drops translations of the superseded
// revision, broadcasts the new text and restarts the snapshot debounce.
func (c *Collab) Edit(ctx context.Context, content string) {
	c.mu.Lock()
	c.content = content
	c.translations = map[string]string{}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.quiet, c.snapshot)
	c.mu.Unlock()

	c.publish(bus.KindDocUpdated)

	if err := c.channel.SendTyping(ctx, content); err != nil {
		c.logger.Warn("typing broadcast failed", zap.Error(err))
	}
}

// snapshot fires after a quiet period and writes the durable row. The
// snapshot always carries an empty translation mapping so stale renderings
// of older text never survive the save.
func (c *Collab) snapshot() {
	c.mu.Lock()
	content := c.content
	c.mu.Unlock()

	if err := c.db.UpsertDocument(content, nil); err != nil {
		c.logger.Warn("snapshot failed, keeping local state", zap.Error(err))
		return
	}
	c.logger.Debug("document saved", zap.Int("bytes", len(content)))
	c.publish(bus.KindDocSaved)
}

func (c *Collab) handle(evt realtime.Event) {
	switch evt.Kind {
	case realtime.EventTyping:
		if evt.Typing == nil {
			return
		}
		c.mu.Lock()
		c.content = evt.Typing.Content
		c.translations = map[string]string{}
		c.mu.Unlock()
		c.publish(bus.KindDocUpdated)

	case realtime.EventDocumentUpdate:
		if evt.Document == nil {
			return
		}
		// Only translations ride the row-update path. Content arrives over
		// typing broadcasts, so a stale row must not clobber newer text.
		// The merge builds a fresh map: previously published payloads keep
		// aliasing the old one, which is never written again.
		c.mu.Lock()
		merged := make(map[string]string, len(c.translations)+len(evt.Document.Translations))
		for k, v := range c.translations {
			merged[k] = v
		}
		for k, v := range evt.Document.Translations {
			merged[k] = v
		}
		c.translations = merged
		c.mu.Unlock()
		c.publish(bus.KindDocEnriched)
	}
}

func (c *Collab) publish(kind string) {
	if c.bus == nil {
		return
	}
	// Payloads outlive the lock, so they carry their own copy of the map.
	c.mu.Lock()
	translations := make(map[string]string, len(c.translations))
	for k, v := range c.translations {
		translations[k] = v
	}
	snap := store.Document{Content: c.content, Translations: translations}
	c.mu.Unlock()
	c.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: snap})
}
