package api

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func (s *Service) listSessions(ctx context.Context, req ListRequest) (SessionsResponse, error) {
	ctl := s.engine.Pairing()
	if req.Refresh {
		if err := ctl.Refresh(ctx); err != nil {
			return SessionsResponse{}, toStatus("refresh sessions", err)
		}
	}
	views := ctl.Sessions()
	out := SessionsResponse{Sessions: make([]SessionInfo, 0, len(views))}
	for _, v := range views {
		out.Sessions = append(out.Sessions, sessionInfo(v))
	}
	return out, nil
}

func (s *Service) createSession(ctx context.Context, req SessionRequest) (SessionInfo, error) {
	if req.Name == "" {
		return SessionInfo{}, grpcstatus.Error(codes.InvalidArgument, "name is required")
	}
	v, err := s.engine.Pairing().Create(ctx, req.Name)
	if err != nil {
		return SessionInfo{}, toStatus("create session", err)
	}
	s.logger.Info("session created", zap.String("session_id", v.ID))
	return sessionInfo(v), nil
}

func (s *Service) renameSession(ctx context.Context, req SessionRequest) (SessionInfo, error) {
	if req.ID == "" || req.Name == "" {
		return SessionInfo{}, grpcstatus.Error(codes.InvalidArgument, "id and name are required")
	}
	v, err := s.engine.Pairing().Rename(ctx, req.ID, req.Name)
	if err != nil {
		return SessionInfo{}, toStatus("rename session", err)
	}
	return sessionInfo(v), nil
}

func (s *Service) deleteSession(ctx context.Context, req IDRequest) (empty, error) {
	if req.ID == "" {
		return empty{}, grpcstatus.Error(codes.InvalidArgument, "id is required")
	}
	return empty{}, toStatus("delete session", s.engine.Pairing().Delete(ctx, req.ID))
}

// connectSession starts pairing and returns the session as it stands once
// the REST call returned; codes arrive later through Watch.
func (s *Service) connectSession(ctx context.Context, req IDRequest) (SessionInfo, error) {
	if req.ID == "" {
		return SessionInfo{}, grpcstatus.Error(codes.InvalidArgument, "id is required")
	}
	ctl := s.engine.Pairing()
	if err := ctl.Connect(ctx, req.ID); err != nil {
		return SessionInfo{}, toStatus("connect session", err)
	}
	v, _ := ctl.Session(req.ID)
	return sessionInfo(v), nil
}

func (s *Service) disconnectSession(ctx context.Context, req IDRequest) (empty, error) {
	if req.ID == "" {
		return empty{}, grpcstatus.Error(codes.InvalidArgument, "id is required")
	}
	return empty{}, toStatus("disconnect session", s.engine.Pairing().Disconnect(ctx, req.ID))
}

func (s *Service) dismissPairing(_ context.Context, req IDRequest) (empty, error) {
	s.engine.Pairing().Dismiss(req.ID)
	return empty{}, nil
}
