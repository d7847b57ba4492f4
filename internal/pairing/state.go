// Package pairing drives messaging accounts from disconnected through
// pairing to connected, combining pushed status frames with a polling
// fallback against the status endpoint.
package pairing

import (
	"errors"
	"fmt"
	"slices"

	"github.com/talentpipe/inboxsync/internal/model"
)

// ErrInvalidTransition is wrapped by every rejected transition.
var ErrInvalidTransition = errors.New("invalid pairing transition")

// validTransitions defines allowed state transitions. awaiting→awaiting is a
// pairing code refresh.
var validTransitions = map[model.SessionStatus][]model.SessionStatus{
	model.SessionDisconnected: {model.SessionAwaitingCode, model.SessionConnected, model.SessionError},
	model.SessionAwaitingCode: {model.SessionAwaitingCode, model.SessionConnected, model.SessionDisconnected, model.SessionError},
	model.SessionConnected:    {model.SessionDisconnected, model.SessionError},
	model.SessionError:        {model.SessionDisconnected},
}

// CanTransition reports whether from→to is allowed.
func CanTransition(from, to model.SessionStatus) bool {
	return slices.Contains(validTransitions[from], to)
}

func checkTransition(from, to model.SessionStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Change is the payload for pairing.state_changed events.
type Change struct {
	SessionID string
	From      model.SessionStatus
	To        model.SessionStatus
}

// Code is the payload for pairing.code events. Image is the base64 picture
// sent by the backend; Raw, when present, is the string it encodes.
type Code struct {
	SessionID string
	Image     string
	Raw       string
}

// Abandoned is the payload for pairing.abandoned events.
type Abandoned struct {
	SessionID string
	Polls     int
}

// View is a session as the operator sees it: the backend snapshot with the
// local pairing state and whether the pairing view is open.
type View struct {
	model.Session
	RawCode string
	Pairing bool
	Polling bool
}
