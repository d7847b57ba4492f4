package api

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/talentpipe/inboxsync/internal/bus"
)

// Watch streams bus events whose kind starts with the requested prefix
// (every event when empty) until the client goes away.
func (s *Service) Watch(in *structpb.Struct, stream grpc.ServerStream) error {
	var req WatchRequest
	if err := decode(in, &req); err != nil {
		return err
	}
	ch, unsub := s.engine.Bus().Subscribe(req.Prefix, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			out, err := encode(toEvent(evt))
			if err != nil {
				s.logger.Warn("dropping unencodable event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func toEvent(evt bus.Event) Event {
	out := Event{ID: uuid.NewString(), Kind: evt.Kind, At: evt.Timestamp}
	if evt.Payload == nil {
		return out
	}
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		return out
	}
	if json.Unmarshal(data, &out.Payload) != nil {
		var v any
		_ = json.Unmarshal(data, &v)
		out.Payload = map[string]any{"value": v}
	}
	return out
}
