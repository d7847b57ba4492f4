package model

import (
	"encoding/json"

	"github.com/talentpipe/inboxsync/internal/phone"
)

// Session is a messaging account. Phone stays empty until it is paired.
type Session struct {
	ID          string        `json:"id"`
	Name        string        `json:"nome"`
	Phone       string        `json:"telefone,omitempty"`
	Status      SessionStatus `json:"status"`
	PairingCode string        `json:"qrCode,omitempty"`
}

// UnmarshalJSON accepts both REST and push-frame session snapshots.
func (s *Session) UnmarshalJSON(b []byte) error {
	var w struct {
		ID          ID     `json:"id"`
		SessionID   ID     `json:"sessionId"`
		Nome        string `json:"nome"`
		Name        string `json:"name"`
		Telefone    string `json:"telefone"`
		Phone       string `json:"phone"`
		PhoneNumber string `json:"phoneNumber"`
		Status      string `json:"status"`
		QRCode      string `json:"qrCode"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = Session{
		ID:          first(string(w.ID), string(w.SessionID)),
		Name:        first(w.Nome, w.Name),
		Phone:       phone.Normalize(first(w.Telefone, w.Phone, w.PhoneNumber)),
		Status:      ParseSessionStatus(w.Status),
		PairingCode: w.QRCode,
	}
	return nil
}
