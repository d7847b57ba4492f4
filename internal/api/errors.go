package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/talentpipe/inboxsync/internal/backend"
	"github.com/talentpipe/inboxsync/internal/channel"
	"github.com/talentpipe/inboxsync/internal/outbox"
	"github.com/talentpipe/inboxsync/internal/pairing"
	"github.com/talentpipe/inboxsync/internal/store"
	intsync "github.com/talentpipe/inboxsync/internal/sync"
)

// toStatus maps domain errors onto gRPC codes.
func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch {
	case errors.Is(err, channel.ErrNotConnected):
		code = codes.Unavailable
	case errors.Is(err, intsync.ErrNoSelection),
		errors.Is(err, pairing.ErrInvalidTransition),
		errors.Is(err, outbox.ErrNotFailed),
		errors.Is(err, outbox.ErrNoJournal):
		code = codes.FailedPrecondition
	case errors.Is(err, intsync.ErrNoPhone), errors.Is(err, outbox.ErrEmptyBody):
		code = codes.InvalidArgument
	case errors.Is(err, backend.ErrNotFound), errors.Is(err, store.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, intsync.ErrSuperseded):
		code = codes.Aborted
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}
	return grpcstatus.Errorf(code, "%s: %v", op, err)
}
