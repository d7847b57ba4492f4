package model

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/talentpipe/inboxsync/internal/api"
	domain "github.com/talentpipe/inboxsync/internal/model"
)

// Client is the slice of the daemon API the TUI uses.
type Client interface {
	Status(ctx context.Context) (api.StatusInfo, error)
	ListSessions(ctx context.Context, refresh bool) ([]api.SessionInfo, error)
	ConnectSession(ctx context.Context, id string) (api.SessionInfo, error)
	DisconnectSession(ctx context.Context, id string) error
	DismissPairing(ctx context.Context, id string) error
	ListConversations(ctx context.Context, refresh bool) ([]domain.Conversation, error)
	Open(ctx context.Context, phone, contactID string) (api.OpenResponse, error)
	Messages(ctx context.Context, phone string) (api.MessagesResponse, error)
	Send(ctx context.Context, body string) (domain.Message, error)
	FailedSends(ctx context.Context) ([]api.FailedSend, error)
	Resend(ctx context.Context, clientID string) (domain.Message, error)
	Watch(ctx context.Context, prefix string, fn func(api.Event) error) error
}

// ViewModel caches daemon state for the views. Loaders are safe to call from
// any goroutine; getters return copies.
type ViewModel struct {
	mu sync.RWMutex

	client        Client
	status        api.StatusInfo
	sessions      []api.SessionInfo
	conversations []domain.Conversation
	phone         string
	thread        []domain.Message
	Flash         Flash
}

// NewViewModel creates a view model backed by the daemon client.
func NewViewModel(c Client) *ViewModel {
	return &ViewModel{client: c}
}

// LoadStatus fetches connection and selection state.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	st, err := vm.client.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = st
	if vm.phone == "" {
		vm.phone = st.Phone
	}
	vm.mu.Unlock()
	return nil
}

// LoadSessions fetches sessions with their pairing state.
func (vm *ViewModel) LoadSessions(ctx context.Context, refresh bool) error {
	list, err := vm.client.ListSessions(ctx, refresh)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.sessions = list
	vm.mu.Unlock()
	return nil
}

// LoadConversations fetches the conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context, refresh bool) error {
	list, err := vm.client.ListConversations(ctx, refresh)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.conversations = list
	vm.mu.Unlock()
	return nil
}

// Open selects a conversation and loads its history.
func (vm *ViewModel) Open(ctx context.Context, phone, contactID string) error {
	vm.mu.Lock()
	vm.phone = phone
	vm.thread = nil
	vm.mu.Unlock()

	resp, err := vm.client.Open(ctx, phone, contactID)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	// A later Open won; its response owns the thread.
	if vm.phone != phone {
		return nil
	}
	vm.phone = resp.Phone
	vm.thread = sortThread(resp.Messages)
	vm.status.Phone = resp.Phone
	vm.status.ContactID = resp.ContactID
	vm.status.Generation = resp.Generation
	return nil
}

// LoadThread re-reads the open thread.
func (vm *ViewModel) LoadThread(ctx context.Context) error {
	phone := vm.Phone()
	if phone == "" {
		return nil
	}
	resp, err := vm.client.Messages(ctx, phone)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.phone == phone {
		vm.thread = sortThread(resp.Messages)
	}
	vm.mu.Unlock()
	return nil
}

// Send posts body to the selected conversation.
func (vm *ViewModel) Send(ctx context.Context, body string) error {
	if _, err := vm.client.Send(ctx, body); err != nil {
		return err
	}
	return vm.LoadThread(ctx)
}

// ResendLastFailed resends the newest failed message of the open thread.
// It reports false when the thread has none.
func (vm *ViewModel) ResendLastFailed(ctx context.Context) (bool, error) {
	phone := vm.Phone()
	failed, err := vm.client.FailedSends(ctx)
	if err != nil {
		return false, err
	}
	var last *api.FailedSend
	for i := range failed {
		f := &failed[i]
		if f.Phone == phone && (last == nil || f.At.After(last.At)) {
			last = f
		}
	}
	if last == nil {
		return false, nil
	}
	if _, err := vm.client.Resend(ctx, last.ClientID); err != nil {
		return false, err
	}
	return true, vm.LoadThread(ctx)
}

// Connect starts pairing for a session.
func (vm *ViewModel) Connect(ctx context.Context, id string) (api.SessionInfo, error) {
	s, err := vm.client.ConnectSession(ctx, id)
	if err != nil {
		return s, err
	}
	vm.upsertSession(s)
	return s, nil
}

// Dismiss closes the pairing view for a session.
func (vm *ViewModel) Dismiss(ctx context.Context, id string) error {
	if err := vm.client.DismissPairing(ctx, id); err != nil {
		return err
	}
	return vm.LoadSessions(ctx, false)
}

// Disconnect logs a session out.
func (vm *ViewModel) Disconnect(ctx context.Context, id string) error {
	if err := vm.client.DisconnectSession(ctx, id); err != nil {
		return err
	}
	return vm.LoadSessions(ctx, false)
}

// SetCode stores a pushed pairing code on its session.
func (vm *ViewModel) SetCode(id, raw, picture string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for i := range vm.sessions {
		if vm.sessions[i].ID == id {
			vm.sessions[i].RawCode = raw
			vm.sessions[i].PairingCode = picture
			vm.sessions[i].Pairing = true
		}
	}
}

func (vm *ViewModel) upsertSession(s api.SessionInfo) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for i := range vm.sessions {
		if vm.sessions[i].ID == s.ID {
			vm.sessions[i] = s
			return
		}
	}
	vm.sessions = append(vm.sessions, s)
}

// Status returns the last known daemon status.
func (vm *ViewModel) Status() api.StatusInfo {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// SetConnected records a channel transition seen on the event stream.
func (vm *ViewModel) SetConnected(up bool) {
	vm.mu.Lock()
	vm.status.Connected = up
	vm.mu.Unlock()
}

// Phone returns the open conversation's phone.
func (vm *ViewModel) Phone() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.phone
}

// Sessions returns a snapshot of the session list.
func (vm *ViewModel) Sessions() []api.SessionInfo {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return append([]api.SessionInfo(nil), vm.sessions...)
}

// Session returns one session by id.
func (vm *ViewModel) Session(id string) (api.SessionInfo, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, s := range vm.sessions {
		if s.ID == id {
			return s, true
		}
	}
	return api.SessionInfo{}, false
}

// AnyConnected reports whether at least one session is connected.
func (vm *ViewModel) AnyConnected() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, s := range vm.sessions {
		if s.Status == domain.SessionConnected {
			return true
		}
	}
	return false
}

// Conversations returns a snapshot of the conversation list.
func (vm *ViewModel) Conversations() []domain.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return append([]domain.Conversation(nil), vm.conversations...)
}

// Thread returns the open thread, oldest first.
func (vm *ViewModel) Thread() []domain.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return append([]domain.Message(nil), vm.thread...)
}

// Title names the open conversation from the list, falling back to the phone.
func (vm *ViewModel) Title() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.conversations {
		if c.Phone == vm.phone && c.Name != "" {
			return c.Name + " (" + c.Phone + ")"
		}
	}
	return vm.phone
}

func sortThread(msgs []domain.Message) []domain.Message {
	out := append([]domain.Message(nil), msgs...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].SentAt, out[j].SentAt
		if a.IsZero() || b.IsZero() {
			return false
		}
		return a.Before(b)
	})
	return out
}

// flashFor is how long transient notices stay in the status bar.
const flashFor = 5 * time.Second
