package api

import (
	"context"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/talentpipe/inboxsync/internal/model"
)

func (s *Service) listConversations(_ context.Context, _ empty) (ConversationsResponse, error) {
	return ConversationsResponse{Conversations: nonNil(s.engine.Directory().List())}, nil
}

func (s *Service) refreshConversations(ctx context.Context, _ empty) (ConversationsResponse, error) {
	dir := s.engine.Directory()
	if err := dir.Refresh(ctx); err != nil {
		return ConversationsResponse{}, toStatus("refresh conversations", err)
	}
	return ConversationsResponse{Conversations: nonNil(dir.List())}, nil
}

func (s *Service) open(ctx context.Context, req OpenRequest) (OpenResponse, error) {
	sel, err := s.engine.Open(ctx, req.Phone, req.ContactID)
	if err != nil {
		return OpenResponse{}, toStatus("open", err)
	}
	return OpenResponse{
		Phone:      sel.Phone,
		ContactID:  sel.ContactID,
		Generation: sel.Generation,
		Messages:   nonNil(s.engine.Messages().Messages(sel.Phone)),
	}, nil
}

// messages returns a thread; the selected one when no phone is given.
func (s *Service) messages(_ context.Context, req MessagesRequest) (MessagesResponse, error) {
	p := req.Phone
	if p == "" {
		p = s.engine.Selection().Current().Phone
	}
	if p == "" {
		return MessagesResponse{}, grpcstatus.Error(codes.FailedPrecondition, "no conversation selected")
	}
	return MessagesResponse{Phone: p, Messages: nonNil(s.engine.Messages().Messages(p))}, nil
}

func (s *Service) send(_ context.Context, req SendRequest) (model.Message, error) {
	msg, err := s.engine.Send(req.Body)
	return msg, toStatus("send", err)
}

func (s *Service) sendTemplate(ctx context.Context, req TemplateRequest) (model.Message, error) {
	if req.TemplateID == "" {
		return model.Message{}, grpcstatus.Error(codes.InvalidArgument, "templateId is required")
	}
	msg, err := s.engine.SendTemplate(ctx, req.TemplateID, req.Variables)
	return msg, toStatus("send template", err)
}

func (s *Service) listTemplates(ctx context.Context, _ empty) (TemplatesResponse, error) {
	list, err := s.engine.Templates(ctx)
	if err != nil {
		return TemplatesResponse{}, toStatus("list templates", err)
	}
	return TemplatesResponse{Templates: nonNil(list)}, nil
}

func (s *Service) failedSends(_ context.Context, _ empty) (FailedResponse, error) {
	entries, err := s.engine.Outbox().Failed()
	if err != nil {
		return FailedResponse{}, toStatus("failed sends", err)
	}
	out := FailedResponse{Failed: make([]FailedSend, 0, len(entries))}
	for _, e := range entries {
		out.Failed = append(out.Failed, failedSend(e))
	}
	return out, nil
}

func (s *Service) resend(_ context.Context, req ResendRequest) (model.Message, error) {
	if req.ClientID == "" {
		return model.Message{}, grpcstatus.Error(codes.InvalidArgument, "clientId is required")
	}
	msg, err := s.engine.Resend(req.ClientID)
	return msg, toStatus("resend", err)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
