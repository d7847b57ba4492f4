package bus

import "time"

// Event kinds published by the synchronizer. Subscribers filter by prefix,
// so "pairing." receives every pairing event.
const (
	ChannelConnected     = "channel.connected"
	ChannelDisconnected  = "channel.disconnected"
	PairingStateChanged  = "pairing.state_changed"
	PairingCode          = "pairing.code"
	PairingAbandoned     = "pairing.abandoned"
	PairingDismissed     = "pairing.dismissed"
	SessionsUpdated      = "sessions.updated"
	SelectionChanged     = "selection.changed"
	MessagesUpdated      = "messages.updated"
	MessageSendFailed    = "messages.send_failed"
	HistoryDiscarded     = "messages.history_discarded"
	ConversationsUpdated = "conversations.updated"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
