// Package api exposes the synchronizer to local clients over gRPC. Messages
// are protobuf Struct values; the shapes are the JSON types in this package.
package api

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	intsync "github.com/talentpipe/inboxsync/internal/sync"
)

// Service implements the control RPCs on top of the engine.
type Service struct {
	profile   string
	engine    *intsync.Engine
	logger    *zap.Logger
	startedAt time.Time
}

// NewService creates the control service for a profile.
func NewService(profile string, engine *intsync.Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		profile:   profile,
		engine:    engine,
		logger:    logger.With(zap.String("component", "api")),
		startedAt: time.Now(),
	}
}

func (s *Service) unary() map[string]unaryFunc {
	return map[string]unaryFunc{
		MethodStatus:               handle(s.status),
		MethodListSessions:         handle(s.listSessions),
		MethodCreateSession:        handle(s.createSession),
		MethodRenameSession:        handle(s.renameSession),
		MethodDeleteSession:        handle(s.deleteSession),
		MethodConnectSession:       handle(s.connectSession),
		MethodDisconnectSession:    handle(s.disconnectSession),
		MethodDismissPairing:       handle(s.dismissPairing),
		MethodListConversations:    handle(s.listConversations),
		MethodRefreshConversations: handle(s.refreshConversations),
		MethodOpen:                 handle(s.open),
		MethodMessages:             handle(s.messages),
		MethodSend:                 handle(s.send),
		MethodSendTemplate:         handle(s.sendTemplate),
		MethodListTemplates:        handle(s.listTemplates),
		MethodFailedSends:          handle(s.failedSends),
		MethodResend:               handle(s.resend),
	}
}

// handle adapts a typed RPC to the Struct wire form.
func handle[Req, Resp any](fn func(context.Context, Req) (Resp, error)) unaryFunc {
	return func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		var req Req
		if err := decode(in, &req); err != nil {
			return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		out, err := encode(resp)
		if err != nil {
			return nil, grpcstatus.Error(codes.Internal, err.Error())
		}
		return out, nil
	}
}

type empty struct{}

func (s *Service) status(_ context.Context, _ empty) (StatusInfo, error) {
	st := s.engine.Status()
	return StatusInfo{
		Profile:    s.profile,
		Connected:  st.Connected,
		ClientID:   st.ClientID,
		Phone:      st.Selection.Phone,
		ContactID:  st.Selection.ContactID,
		Generation: st.Selection.Generation,
		Pending:    st.Pending,
		Dropped:    s.engine.Bus().Dropped(),
		UptimeMs:   time.Since(s.startedAt).Milliseconds(),
	}, nil
}
