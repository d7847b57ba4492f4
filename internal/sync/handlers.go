package sync

import (
	"go.uber.org/zap"

	"github.com/talentpipe/inboxsync/internal/frame"
	"github.com/talentpipe/inboxsync/internal/pairing"
	"github.com/talentpipe/inboxsync/internal/selection"
)

func (e *Engine) register() {
	e.ch.Handle(frame.TypeNewMessage, e.onNewMessage)
	e.ch.Handle(frame.TypeMessageSent, e.onMessageSent)
	e.ch.Handle(frame.TypeMessageStatusUpdate, e.onStatusUpdate)
	e.ch.Handle(frame.TypeContactHistory, e.onContactHistory)
	e.ch.Handle(frame.TypeSessionStatus, e.onSessionStatus)
	e.ch.Handle(frame.TypeQRCode, e.onQRCode)
	e.ch.OnConnect(e.onConnect)
}

// onNewMessage appends the message only when it belongs to the selection as
// it is at dispatch time. The conversation list refreshes either way.
func (e *Engine) onNewMessage(f frame.Frame) {
	defer e.dir.Trigger()

	var p frame.NewMessage
	if err := f.Payload(&p); err != nil {
		e.logger.Warn("malformed new_message", zap.Error(err))
		return
	}
	msg := p.Message()
	if msg.Phone == "" && msg.ContactID == "" {
		e.logger.Warn("new_message without phone or contact id")
		return
	}

	var matched selection.Selection
	ok := e.sel.WithMatch(msg.Phone, msg.ContactID, func(cur selection.Selection) {
		matched = cur
		msg.Phone = cur.Phone
		e.msgs.AppendInbound(msg)
	})
	if !ok {
		e.logger.Debug("inbound message for another conversation", zap.String("phone", msg.Phone))
		return
	}
	if msg.ContactID != "" && matched.ContactID == "" {
		e.sel.Link(matched.Phone, msg.ContactID)
	}
}

func (e *Engine) onMessageSent(f frame.Frame) {
	var p frame.MessageSent
	if err := f.Payload(&p); err != nil {
		e.logger.Warn("malformed message_sent", zap.Error(err))
		return
	}
	if _, ok := e.outbox.Acknowledge(p.Ack()); !ok {
		e.logger.Debug("ack for unknown message", zap.String("server_id", string(p.MessageID)))
	}
}

func (e *Engine) onStatusUpdate(f frame.Frame) {
	var p frame.MessageStatusUpdate
	if err := f.Payload(&p); err != nil {
		e.logger.Warn("malformed message_status_update", zap.Error(err))
		return
	}
	if p.Status.Rank() < 0 {
		e.logger.Warn("unknown message status", zap.String("status", string(p.Status)))
		return
	}
	if !e.msgs.UpdateStatus(string(p.MessageID), p.Status) {
		e.logger.Debug("status update ignored",
			zap.String("message_id", string(p.MessageID)), zap.String("status", string(p.Status)))
	}
}

// onContactHistory replaces the open thread when the pushed history belongs
// to the selected contact.
func (e *Engine) onContactHistory(f frame.Frame) {
	var p frame.ContactHistory
	if err := f.Payload(&p); err != nil {
		e.logger.Warn("malformed candidato_historico", zap.Error(err))
		return
	}
	if p.ContactID == "" {
		return
	}
	e.sel.WithMatch("", string(p.ContactID), func(cur selection.Selection) {
		e.msgs.Replace(cur.Phone, p.History)
	})
}

func (e *Engine) onSessionStatus(f frame.Frame) {
	s, err := f.Session()
	if err != nil {
		e.logger.Warn("malformed session_status", zap.Error(err))
		return
	}
	if s.ID == "" {
		e.logger.Warn("session_status without session id")
		return
	}
	e.pairing.HandleStatus(s)
}

func (e *Engine) onQRCode(f frame.Frame) {
	var p frame.QRCode
	if err := f.Payload(&p); err != nil {
		e.logger.Warn("malformed qr_code", zap.Error(err))
		return
	}
	e.pairing.HandleCode(pairing.Code{SessionID: string(p.SessionID), Image: p.QRCode, Raw: p.Code})
}
