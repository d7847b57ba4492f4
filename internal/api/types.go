package api

import (
	"time"

	"github.com/talentpipe/inboxsync/internal/model"
	"github.com/talentpipe/inboxsync/internal/pairing"
	"github.com/talentpipe/inboxsync/internal/store"
)

// StatusInfo answers Status.
type StatusInfo struct {
	Profile    string `json:"profile"`
	Connected  bool   `json:"connected"`
	ClientID   string `json:"clientId,omitempty"`
	Phone      string `json:"phone,omitempty"`
	ContactID  string `json:"contactId,omitempty"`
	Generation uint64 `json:"generation"`
	Pending    int    `json:"pending"`
	Dropped    uint64 `json:"droppedEvents"`
	UptimeMs   int64  `json:"uptimeMs"`
}

// SessionInfo is a session with its local pairing state.
type SessionInfo struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Phone       string              `json:"phone,omitempty"`
	Status      model.SessionStatus `json:"status"`
	PairingCode string              `json:"pairingCode,omitempty"`
	RawCode     string              `json:"rawCode,omitempty"`
	Pairing     bool                `json:"pairing"`
	Polling     bool                `json:"polling"`
}

func sessionInfo(v pairing.View) SessionInfo {
	return SessionInfo{
		ID:          v.ID,
		Name:        v.Name,
		Phone:       v.Phone,
		Status:      v.Status,
		PairingCode: v.PairingCode,
		RawCode:     v.RawCode,
		Pairing:     v.Pairing,
		Polling:     v.Polling,
	}
}

// FailedSend is a journaled send that failed.
type FailedSend struct {
	ClientID   string    `json:"clientId"`
	Phone      string    `json:"phone"`
	ContactID  string    `json:"contactId,omitempty"`
	Body       string    `json:"body"`
	TemplateID string    `json:"templateId,omitempty"`
	Error      string    `json:"error"`
	At         time.Time `json:"at"`
}

func failedSend(e store.OutboxEntry) FailedSend {
	return FailedSend{
		ClientID:   e.ClientID,
		Phone:      e.Phone,
		ContactID:  e.ContactID,
		Body:       e.Body,
		TemplateID: e.TemplateID,
		Error:      e.ErrorMessage,
		At:         time.UnixMilli(e.UpdatedAt),
	}
}

// Event is one bus event delivered by Watch.
type Event struct {
	ID      string         `json:"id"`
	Kind    string         `json:"kind"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Request shapes.
type (
	IDRequest struct {
		ID string `json:"id"`
	}
	SessionRequest struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name"`
	}
	ListRequest struct {
		Refresh bool `json:"refresh,omitempty"`
	}
	OpenRequest struct {
		Phone     string `json:"phone"`
		ContactID string `json:"contactId,omitempty"`
	}
	MessagesRequest struct {
		Phone string `json:"phone,omitempty"`
	}
	SendRequest struct {
		Body string `json:"body"`
	}
	TemplateRequest struct {
		TemplateID string            `json:"templateId"`
		Variables  map[string]string `json:"variables,omitempty"`
	}
	ResendRequest struct {
		ClientID string `json:"clientId"`
	}
	WatchRequest struct {
		Prefix string `json:"prefix,omitempty"`
	}
)

// Response shapes.
type (
	SessionsResponse struct {
		Sessions []SessionInfo `json:"sessions"`
	}
	ConversationsResponse struct {
		Conversations []model.Conversation `json:"conversations"`
	}
	OpenResponse struct {
		Phone      string          `json:"phone"`
		ContactID  string          `json:"contactId,omitempty"`
		Generation uint64          `json:"generation"`
		Messages   []model.Message `json:"messages"`
	}
	MessagesResponse struct {
		Phone    string          `json:"phone"`
		Messages []model.Message `json:"messages"`
	}
	TemplatesResponse struct {
		Templates []model.Template `json:"templates"`
	}
	FailedResponse struct {
		Failed []FailedSend `json:"failed"`
	}
)
