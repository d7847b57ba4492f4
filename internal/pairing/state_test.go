package pairing

import (
	"errors"
	"testing"

	"github.com/talentpipe/inboxsync/internal/model"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to model.SessionStatus
		want     bool
	}{
		{model.SessionDisconnected, model.SessionAwaitingCode, true},
		{model.SessionDisconnected, model.SessionConnected, true},
		{model.SessionDisconnected, model.SessionError, true},
		{model.SessionAwaitingCode, model.SessionAwaitingCode, true},
		{model.SessionAwaitingCode, model.SessionConnected, true},
		{model.SessionAwaitingCode, model.SessionDisconnected, true},
		{model.SessionConnected, model.SessionDisconnected, true},
		{model.SessionConnected, model.SessionError, true},
		{model.SessionError, model.SessionDisconnected, true},
		{model.SessionConnected, model.SessionAwaitingCode, false},
		{model.SessionError, model.SessionConnected, false},
		{model.SessionError, model.SessionAwaitingCode, false},
		{model.SessionDisconnected, model.SessionDisconnected, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCheckTransitionWrapsSentinel(t *testing.T) {
	err := checkTransition(model.SessionError, model.SessionConnected)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}
