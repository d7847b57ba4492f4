// Package frame encodes and decodes push-channel frames. Every frame is a JSON
// object with a "type" discriminator; payload fields sit either at the top
// level or under "data".
package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Frame types received from the backend.
const (
	TypeConnectionEstablished = "connection_established"
	TypeSessionStatus         = "session_status"
	TypeQRCode                = "qr_code"
	TypeNewMessage            = "new_message"
	TypeMessageSent           = "message_sent"
	TypeMessageStatusUpdate   = "message_status_update"
	TypeContactHistory        = "candidato_historico"
)

// ErrMissingType is returned for JSON objects without a type.
var ErrMissingType = errors.New("frame has no type")

// Frame is a decoded envelope. The payload is decoded lazily by the handler
// registered for Type.
type Frame struct {
	Type    string
	payload json.RawMessage
}

// Decode parses one raw frame.
func Decode(raw []byte) (Frame, error) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Type == "" {
		return Frame{}, ErrMissingType
	}
	payload := json.RawMessage(raw)
	if d := bytes.TrimSpace(env.Data); len(d) > 0 && d[0] == '{' {
		payload = d
	}
	return Frame{Type: env.Type, payload: payload}, nil
}

// New builds a frame from a payload value. Used by tests and fakes.
func New(typ string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: typ, payload: data}, nil
}

// Payload decodes the frame payload into v.
func (f Frame) Payload(v any) error {
	if len(f.payload) == 0 {
		return fmt.Errorf("frame %s: empty payload", f.Type)
	}
	if err := json.Unmarshal(f.payload, v); err != nil {
		return fmt.Errorf("frame %s: %w", f.Type, err)
	}
	return nil
}

// Raw returns the payload bytes.
func (f Frame) Raw() json.RawMessage { return f.payload }
