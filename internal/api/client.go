package api

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/talentpipe/inboxsync/internal/model"
)

// Client talks to a daemon over its Unix domain socket.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon socket. The connection is lazy: errors show
// up on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return decode(out, resp)
}

func (c *Client) Status(ctx context.Context) (StatusInfo, error) {
	var out StatusInfo
	err := c.invoke(ctx, MethodStatus, empty{}, &out)
	return out, err
}

func (c *Client) ListSessions(ctx context.Context, refresh bool) ([]SessionInfo, error) {
	var out SessionsResponse
	err := c.invoke(ctx, MethodListSessions, ListRequest{Refresh: refresh}, &out)
	return out.Sessions, err
}

func (c *Client) CreateSession(ctx context.Context, name string) (SessionInfo, error) {
	var out SessionInfo
	err := c.invoke(ctx, MethodCreateSession, SessionRequest{Name: name}, &out)
	return out, err
}

func (c *Client) RenameSession(ctx context.Context, id, name string) (SessionInfo, error) {
	var out SessionInfo
	err := c.invoke(ctx, MethodRenameSession, SessionRequest{ID: id, Name: name}, &out)
	return out, err
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.invoke(ctx, MethodDeleteSession, IDRequest{ID: id}, nil)
}

func (c *Client) ConnectSession(ctx context.Context, id string) (SessionInfo, error) {
	var out SessionInfo
	err := c.invoke(ctx, MethodConnectSession, IDRequest{ID: id}, &out)
	return out, err
}

func (c *Client) DisconnectSession(ctx context.Context, id string) error {
	return c.invoke(ctx, MethodDisconnectSession, IDRequest{ID: id}, nil)
}

func (c *Client) DismissPairing(ctx context.Context, id string) error {
	return c.invoke(ctx, MethodDismissPairing, IDRequest{ID: id}, nil)
}

// ListConversations returns the daemon's current list; refresh forces a
// backend round trip first.
func (c *Client) ListConversations(ctx context.Context, refresh bool) ([]model.Conversation, error) {
	method := MethodListConversations
	if refresh {
		method = MethodRefreshConversations
	}
	var out ConversationsResponse
	err := c.invoke(ctx, method, empty{}, &out)
	return out.Conversations, err
}

func (c *Client) Open(ctx context.Context, phone, contactID string) (OpenResponse, error) {
	var out OpenResponse
	err := c.invoke(ctx, MethodOpen, OpenRequest{Phone: phone, ContactID: contactID}, &out)
	return out, err
}

func (c *Client) Messages(ctx context.Context, phone string) (MessagesResponse, error) {
	var out MessagesResponse
	err := c.invoke(ctx, MethodMessages, MessagesRequest{Phone: phone}, &out)
	return out, err
}

func (c *Client) Send(ctx context.Context, body string) (model.Message, error) {
	var out model.Message
	err := c.invoke(ctx, MethodSend, SendRequest{Body: body}, &out)
	return out, err
}

func (c *Client) SendTemplate(ctx context.Context, templateID string, vars map[string]string) (model.Message, error) {
	var out model.Message
	err := c.invoke(ctx, MethodSendTemplate, TemplateRequest{TemplateID: templateID, Variables: vars}, &out)
	return out, err
}

func (c *Client) ListTemplates(ctx context.Context) ([]model.Template, error) {
	var out TemplatesResponse
	err := c.invoke(ctx, MethodListTemplates, empty{}, &out)
	return out.Templates, err
}

func (c *Client) FailedSends(ctx context.Context) ([]FailedSend, error) {
	var out FailedResponse
	err := c.invoke(ctx, MethodFailedSends, empty{}, &out)
	return out.Failed, err
}

func (c *Client) Resend(ctx context.Context, clientID string) (model.Message, error) {
	var out model.Message
	err := c.invoke(ctx, MethodResend, ResendRequest{ClientID: clientID}, &out)
	return out, err
}

// Watch streams events with the given kind prefix to fn until ctx ends, the
// stream breaks, or fn returns an error.
func (c *Client) Watch(ctx context.Context, prefix string, fn func(Event) error) error {
	stream, err := c.conn.NewStream(ctx, &watchStream, fullMethod(MethodWatch))
	if err != nil {
		return err
	}
	in, err := encode(WatchRequest{Prefix: prefix})
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		var evt Event
		if err := decode(out, &evt); err != nil {
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
}
