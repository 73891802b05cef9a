// Package presence derives the room's participant count from channel
// presence snapshots. There is no leave handshake: membership expiry is the
// channel provider's job, the tracker just counts the latest snapshot.
package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glotpad/glotpad/internal/bus"
	"github.com/glotpad/glotpad/internal/realtime"
)

// Tracker counts distinct participant keys in the room.
type Tracker struct {
	channel realtime.Channel
	key     string
	bus     *bus.Bus
	logger  *zap.Logger

	mu     sync.Mutex
	count  int
	cancel context.CancelFunc
}

// NewTracker creates a tracker for the given participant key.
func NewTracker(ch realtime.Channel, key string, b *bus.Bus, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		channel: ch,
		key:     key,
		bus:     b,
		logger:  logger,
		count:   1, // the local viewer is present by definition
	}
}

// Start registers the local participant and begins consuming snapshots.
func (t *Tracker) Start(ctx context.Context) error {
	ctx, t.cancel = context.WithCancel(ctx)

	if err := t.channel.Track(ctx, realtime.Meta{
		User:     t.key,
		JoinedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}

	ch, unsub := t.channel.Subscribe(32)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if evt.Kind == realtime.EventPresence {
					t.apply(evt.Presence)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop stops the snapshot loop.
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
}

// Count returns the latest participant count, never below 1.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *Tracker) apply(snapshot map[string]realtime.Meta) {
	n := len(snapshot)
	if n < 1 {
		// An observer is by definition present; a zero-key snapshot is a
		// provider hiccup, not an empty room.
		n = 1
	}

	t.mu.Lock()
	changed := n != t.count
	t.count = n
	t.mu.Unlock()

	if changed {
		t.logger.Info("presence changed", zap.Int("participants", n))
		if t.bus != nil {
			t.bus.Publish(bus.Event{
				Kind:      bus.KindPresenceCount,
				Timestamp: time.Now(),
				Payload:   n,
			})
		}
	}
}
