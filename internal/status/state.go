package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/glotpad/glotpad/internal/bus"
)

// State describes the delivery path currently serving remote updates.
type State string

const (
	Booting    State = "BOOTING"
	Connecting State = "CONNECTING"
	// Live means the push channel delivers inserts/broadcasts/presence.
	Live State = "LIVE"
	// PollOnly means the push channel is down and the periodic store poll
	// is the only delivery path. Chat keeps flowing, just slower.
	PollOnly State = "POLL_ONLY"
	Error    State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:    {Connecting, Error},
	Connecting: {Live, PollOnly, Error},
	Live:       {PollOnly, Connecting, Error},
	PollOnly:   {Connecting, Live, Error},
	Error:      {Booting},
}

// Machine tracks and enforces channel connectivity transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Booting.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error if the
// transition is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindChannelStatus,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
