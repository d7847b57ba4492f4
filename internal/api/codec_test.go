package api

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/talentpipe/inboxsync/internal/backend"
	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/channel"
	"github.com/talentpipe/inboxsync/internal/model"
	"github.com/talentpipe/inboxsync/internal/outbox"
	"github.com/talentpipe/inboxsync/internal/pairing"
	intsync "github.com/talentpipe/inboxsync/internal/sync"
)

func TestCodecRoundTripsMessages(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	in := OpenResponse{
		Phone:      "5511999990000",
		ContactID:  "c-1",
		Generation: 4,
		Messages: []model.Message{{
			ID:        "srv-1",
			ClientID:  "tmp-1",
			Phone:     "5511999990000",
			Direction: model.Outbound,
			Body:      "olá",
			Status:    model.StatusDelivered,
			SentAt:    at,
		}},
	}
	s, err := encode(in)
	require.NoError(t, err)

	var out OpenResponse
	require.NoError(t, decode(s, &out))
	assert.Equal(t, in.Phone, out.Phone)
	assert.Equal(t, uint64(4), out.Generation)
	require.Len(t, out.Messages, 1)
	m := out.Messages[0]
	assert.Equal(t, "srv-1", m.ID)
	assert.Equal(t, model.Outbound, m.Direction)
	assert.Equal(t, model.StatusDelivered, m.Status)
	assert.True(t, at.Equal(m.SentAt), "sent at %v, want %v", m.SentAt, at)
}

func TestEncodeWrapsScalars(t *testing.T) {
	s, err := encode(42)
	require.NoError(t, err)
	assert.Equal(t, float64(42), s.AsMap()["value"])

	s, err = encode(nil)
	require.NoError(t, err)
	assert.Empty(t, s.AsMap())
}

func TestToEventFlattensPayload(t *testing.T) {
	evt := toEvent(bus.NewEvent(bus.PairingCode, pairing.Code{SessionID: "s1", Raw: "2@abc"}))
	assert.Equal(t, bus.PairingCode, evt.Kind)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, "s1", evt.Payload["SessionID"])
	assert.Equal(t, "2@abc", evt.Payload["Raw"])

	evt = toEvent(bus.NewEvent(bus.ConversationsUpdated, 7))
	assert.Equal(t, float64(7), evt.Payload["value"])

	evt = toEvent(bus.NewEvent(bus.SelectionChanged, nil))
	assert.Nil(t, evt.Payload)
}

func TestToStatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("send: %w", channel.ErrNotConnected), codes.Unavailable},
		{intsync.ErrNoSelection, codes.FailedPrecondition},
		{pairing.ErrInvalidTransition, codes.FailedPrecondition},
		{outbox.ErrNotFailed, codes.FailedPrecondition},
		{intsync.ErrNoPhone, codes.InvalidArgument},
		{outbox.ErrEmptyBody, codes.InvalidArgument},
		{backend.ErrNotFound, codes.NotFound},
		{intsync.ErrSuperseded, codes.Aborted},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			err := toStatus("op", tt.err)
			assert.Equal(t, tt.want, grpcstatus.Code(err))
			assert.Contains(t, grpcstatus.Convert(err).Message(), "op: ")
		})
	}
	assert.NoError(t, toStatus("op", nil))
}
