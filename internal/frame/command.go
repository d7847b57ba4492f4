package frame

import "encoding/json"

// Command types sent to the backend.
const (
	CmdSubscribeSession = "subscribe_session"
	CmdGetQRCode        = "get_qr_code"
	CmdSubscribeContact = "subscribe_candidato"
)

// Command is an outgoing frame.
type Command struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	AccountID string `json:"accountId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	ContactID string `json:"candidatoId,omitempty"`
	Phone     string `json:"telefone,omitempty"`
}

// SubscribeSession asks for status pushes of one messaging account.
func SubscribeSession(sessionID, accountID, userID string) Command {
	return Command{Type: CmdSubscribeSession, SessionID: sessionID, AccountID: accountID, UserID: userID}
}

// GetQRCode asks the backend to push a pairing code.
func GetQRCode(sessionID string) Command {
	return Command{Type: CmdGetQRCode, SessionID: sessionID}
}

// SubscribeContact subscribes to message pushes for a conversation, by
// contact id when it is known and by phone otherwise.
func SubscribeContact(contactID, phone string) Command {
	if contactID != "" {
		return Command{Type: CmdSubscribeContact, ContactID: contactID}
	}
	return Command{Type: CmdSubscribeContact, Phone: phone}
}

// Encode serialises a command.
func Encode(cmd Command) ([]byte, error) {
	return json.Marshal(cmd)
}
