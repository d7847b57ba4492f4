package model

import (
	"fmt"

	"github.com/talentpipe/inboxsync/internal/api"
	"github.com/talentpipe/inboxsync/internal/bus"
)

// Reload names the data an event invalidates.
type Reload uint8

const (
	ReloadStatus Reload = 1 << iota
	ReloadSessions
	ReloadConversations
	ReloadThread
)

// Has reports whether r includes all of want.
func (r Reload) Has(want Reload) bool { return r&want == want }

// Plan decides what to refetch after evt. Message updates only touch the
// thread when they concern the open phone.
func Plan(evt api.Event, openPhone string) Reload {
	switch evt.Kind {
	case bus.ChannelConnected:
		return ReloadStatus | ReloadSessions | ReloadConversations | ReloadThread
	case bus.ChannelDisconnected, bus.SelectionChanged:
		return ReloadStatus
	case bus.PairingStateChanged, bus.PairingAbandoned, bus.PairingDismissed, bus.SessionsUpdated:
		return ReloadSessions
	case bus.ConversationsUpdated:
		return ReloadConversations
	case bus.MessagesUpdated, bus.HistoryDiscarded:
		if phone, _ := evt.Payload["Phone"].(string); phone == "" || phone == openPhone {
			return ReloadThread | ReloadStatus
		}
		return ReloadStatus
	case bus.MessageSendFailed:
		return ReloadThread | ReloadStatus
	}
	return 0
}

// Notice returns the flash text for evt, if any.
func Notice(evt api.Event) string {
	switch evt.Kind {
	case bus.MessageSendFailed:
		msg, _ := evt.Payload["Error"].(string)
		if msg == "" {
			msg = "unknown error"
		}
		return "Send failed: " + msg
	case bus.PairingAbandoned:
		return fmt.Sprintf("Pairing gave up after %v checks", evt.Payload["Polls"])
	case bus.ChannelDisconnected:
		return "Push channel lost, reconnecting..."
	case bus.HistoryDiscarded:
		return "Stale history discarded"
	}
	return ""
}
