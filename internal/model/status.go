// Package model holds the conversation, message and session types shared by
// the push channel, the REST client and the synchronizer.
package model

import "strings"

// SessionStatus is the pairing/connection status of a messaging account.
type SessionStatus string

const (
	SessionDisconnected SessionStatus = "disconnected"
	SessionAwaitingCode SessionStatus = "awaiting_pairing_code"
	SessionConnected    SessionStatus = "connected"
	SessionError        SessionStatus = "error"
)

var sessionAliases = map[string]SessionStatus{
	"connected":             SessionConnected,
	"conectado":             SessionConnected,
	"open":                  SessionConnected,
	"disconnected":          SessionDisconnected,
	"desconectado":          SessionDisconnected,
	"close":                 SessionDisconnected,
	"closed":                SessionDisconnected,
	"logout":                SessionDisconnected,
	"error":                 SessionError,
	"erro":                  SessionError,
	"failed":                SessionError,
	"awaiting_pairing_code": SessionAwaitingCode,
	"aguardando_qr":         SessionAwaitingCode,
	"aguardando_qrcode":     SessionAwaitingCode,
	"qr_code":               SessionAwaitingCode,
	"qrcode":                SessionAwaitingCode,
}

// ParseSessionStatus maps the backend's vocabularies onto SessionStatus.
// Values outside the known set (e.g. "conectando") are kept lower-cased so
// callers can treat them as non-terminal.
func ParseSessionStatus(raw string) SessionStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := sessionAliases[key]; ok {
		return s
	}
	return SessionStatus(key)
}

// Known reports whether s is one of the four pairing states.
func (s SessionStatus) Known() bool {
	switch s {
	case SessionDisconnected, SessionAwaitingCode, SessionConnected, SessionError:
		return true
	}
	return false
}

// UnmarshalText normalises while decoding.
func (s *SessionStatus) UnmarshalText(text []byte) error {
	*s = ParseSessionStatus(string(text))
	return nil
}

// MessageStatus is the delivery status of a message.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusError     MessageStatus = "error"
	StatusReceived  MessageStatus = "received"
)

var messageAliases = map[string]MessageStatus{
	"sending":      StatusSending,
	"enviando":     StatusSending,
	"pending":      StatusSending,
	"pendente":     StatusSending,
	"sent":         StatusSent,
	"enviada":      StatusSent,
	"enviado":      StatusSent,
	"server_ack":   StatusSent,
	"delivered":    StatusDelivered,
	"entregue":     StatusDelivered,
	"delivery_ack": StatusDelivered,
	"read":         StatusRead,
	"lida":         StatusRead,
	"lido":         StatusRead,
	"played":       StatusRead,
	"error":        StatusError,
	"erro":         StatusError,
	"failed":       StatusError,
	"falha":        StatusError,
	"received":     StatusReceived,
	"recebida":     StatusReceived,
	"recebido":     StatusReceived,
}

// ParseMessageStatus maps the backend's vocabularies onto MessageStatus.
// Unknown values are returned lower-cased and have no rank.
func ParseMessageStatus(raw string) MessageStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := messageAliases[key]; ok {
		return s
	}
	return MessageStatus(key)
}

// UnmarshalText normalises while decoding.
func (s *MessageStatus) UnmarshalText(text []byte) error {
	*s = ParseMessageStatus(string(text))
	return nil
}

// Rank orders outbound statuses: sending(0) < sent|error(1) < delivered(2) < read(3).
// Statuses outside the outbound progression return -1.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSending:
		return 0
	case StatusSent, StatusError:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return -1
}

// Advances reports whether moving from s to next is a forward step.
func (s MessageStatus) Advances(next MessageStatus) bool {
	if s.Rank() < 0 || next.Rank() < 0 {
		return false
	}
	return next.Rank() > s.Rank()
}
