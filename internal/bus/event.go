package bus

import "time"

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds. Subscribers usually filter on the namespace prefix
// ("message.", "doc.", ...) rather than on individual kinds.
const (
	// Chat stream.
	KindMessageAppended  = "message.appended"  // local optimistic append
	KindMessageMerged    = "message.merged"    // remote message accepted
	KindMessageEnriched  = "message.enriched"  // translations attached in place
	KindMessageConfirmed = "message.confirmed" // durable store accepted the row

	// Shared document.
	KindDocUpdated  = "doc.updated"  // content replaced (local edit or broadcast)
	KindDocSaved    = "doc.saved"    // debounced snapshot written
	KindDocEnriched = "doc.enriched" // translations merged for the saved revision

	// Presence.
	KindPresenceCount = "presence.count"

	// Realtime channel connectivity.
	KindChannelConnected    = "channel.connected"
	KindChannelDisconnected = "channel.disconnected"
	KindChannelStatus       = "channel.status_changed"
)
