// Package selection holds the identity of the conversation the operator has
// open. It is read at frame-dispatch time by long-lived handlers, so it is a
// shared field behind a mutex rather than a value captured at registration.
package selection

import (
	"sync"

	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/phone"
)

// Selection is the open conversation. Generation increases on every Select.
type Selection struct {
	Phone      string
	ContactID  string
	Generation uint64
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return s.Phone == "" && s.ContactID == ""
}

// Token tags asynchronous work with the selection it was issued for.
type Token struct {
	Phone      string
	ContactID  string
	Generation uint64
}

// Authority owns the current selection.
type Authority struct {
	mu  sync.Mutex
	cur Selection
	bus *bus.Bus
}

// New creates an Authority with nothing selected.
func New(b *bus.Bus) *Authority {
	return &Authority{bus: b}
}

// Select replaces the selection and invalidates every outstanding token.
// selection.changed is published after the value is visible to dispatch.
func (a *Authority) Select(rawPhone, contactID string) Token {
	a.mu.Lock()
	a.cur = Selection{
		Phone:      phone.Normalize(rawPhone),
		ContactID:  contactID,
		Generation: a.cur.Generation + 1,
	}
	sel := a.cur
	a.mu.Unlock()

	a.bus.Emit(bus.SelectionChanged, sel)
	return Token(sel)
}

// Clear deselects. Outstanding tokens become stale.
func (a *Authority) Clear() {
	a.Select("", "")
}

// Current returns a snapshot of the selection.
func (a *Authority) Current() Selection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cur
}

// Matches reports whether either identity component equals the selection.
// Empty components never match.
func (a *Authority) Matches(rawPhone, contactID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cur.matches(rawPhone, contactID)
}

func (s Selection) matches(rawPhone, contactID string) bool {
	if contactID != "" && s.ContactID != "" && contactID == s.ContactID {
		return true
	}
	return s.Phone != "" && s.Phone == phone.Normalize(rawPhone)
}

// Valid reports whether tok still belongs to the current selection.
func (a *Authority) Valid(tok Token) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return tok.Generation == a.cur.Generation
}

// WithCurrent runs fn while the selection is held, only if tok is current.
// No Select can interleave between the check and fn.
func (a *Authority) WithCurrent(tok Token, fn func(Selection)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if tok.Generation != a.cur.Generation {
		return false
	}
	fn(a.cur)
	return true
}

// WithMatch runs fn while the selection is held, only if the identity matches.
func (a *Authority) WithMatch(rawPhone, contactID string, fn func(Selection)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.cur.matches(rawPhone, contactID) {
		return false
	}
	fn(a.cur)
	return true
}

// Link records the contact id of the selected phone once it becomes known,
// without invalidating tokens.
func (a *Authority) Link(rawPhone, contactID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if contactID == "" || a.cur.ContactID != "" || !phone.Equal(a.cur.Phone, rawPhone) {
		return false
	}
	a.cur.ContactID = contactID
	return true
}
