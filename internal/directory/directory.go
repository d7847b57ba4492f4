// Package directory builds the conversation list from CRM contacts and the
// numbers seen in message traffic.
package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/model"
	"github.com/talentpipe/inboxsync/internal/phone"
)

// Source is the REST side the aggregator reads from.
type Source interface {
	ListContacts(ctx context.Context) ([]model.Contact, error)
	ListConversations(ctx context.Context) ([]model.Conversation, error)
}

// Cache persists the last merged list across daemon restarts.
type Cache interface {
	SaveConversations(list []model.Conversation) error
	LoadConversations() ([]model.Conversation, error)
}

// Aggregator keeps the merged list and refreshes it on demand.
type Aggregator struct {
	src      Source
	cache    Cache
	bus      *bus.Bus
	logger   *zap.Logger
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	refreshMu sync.Mutex

	mu      sync.Mutex
	list    []model.Conversation
	timer   *time.Timer
	pending bool
	closed  bool
}

// New creates an aggregator. Triggers arriving within debounce of each other
// share one refresh.
func New(src Source, b *bus.Bus, logger *zap.Logger, debounce time.Duration) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregator{
		src:      src,
		bus:      b,
		logger:   logger.With(zap.String("component", "directory")),
		debounce: debounce,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// UseCache attaches a cache and seeds the list from it until the first
// refresh lands.
func (a *Aggregator) UseCache(c Cache) {
	list, err := c.LoadConversations()
	if err != nil {
		a.logger.Warn("conversation cache unreadable", zap.Error(err))
	}
	a.mu.Lock()
	a.cache = c
	if a.list == nil && len(list) > 0 {
		a.list = list
	}
	a.mu.Unlock()
}

// List returns the last merged list.
func (a *Aggregator) List() []model.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.Conversation(nil), a.list...)
}

// Lookup returns the entry for a phone.
func (a *Aggregator) Lookup(rawPhone string) (model.Conversation, bool) {
	p := phone.Normalize(rawPhone)
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.list {
		if c.Phone == p {
			return c, true
		}
	}
	return model.Conversation{}, false
}

// Refresh fetches both sources and replaces the list. On failure the
// previous list is kept and the error returned.
func (a *Aggregator) Refresh(ctx context.Context) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	contacts, err := a.src.ListContacts(ctx)
	if err != nil {
		a.logger.Warn("contact fetch failed, keeping previous list", zap.Error(err))
		return fmt.Errorf("list contacts: %w", err)
	}
	traffic, err := a.src.ListConversations(ctx)
	if err != nil {
		a.logger.Warn("conversation fetch failed, keeping previous list", zap.Error(err))
		return fmt.Errorf("list conversations: %w", err)
	}

	merged := Merge(contacts, traffic)
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.list = merged
	cache := a.cache
	a.mu.Unlock()

	if cache != nil {
		if err := cache.SaveConversations(merged); err != nil {
			a.logger.Warn("conversation cache write failed", zap.Error(err))
		}
	}

	a.logger.Debug("conversation list refreshed", zap.Int("entries", len(merged)))
	a.bus.Emit(bus.ConversationsUpdated, len(merged))
	return nil
}

// Trigger schedules a refresh after the debounce window. Calls made while
// one is scheduled are absorbed by it.
func (a *Aggregator) Trigger() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.pending {
		return
	}
	a.pending = true
	if a.timer == nil {
		a.timer = time.AfterFunc(a.debounce, a.fire)
		return
	}
	a.timer.Reset(a.debounce)
}

func (a *Aggregator) fire() {
	a.mu.Lock()
	a.pending = false
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}
	_ = a.Refresh(a.ctx)
}

// Close cancels the scheduled and running refreshes.
func (a *Aggregator) Close() {
	a.mu.Lock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()
	a.cancel()
}

// Merge combines contacts and traffic by phone. A contact's name and id win
// over the traffic entry for the same number. The result is ordered by last
// activity, most recent first, then by name and phone.
func Merge(contacts []model.Contact, traffic []model.Conversation) []model.Conversation {
	byPhone := make(map[string]*model.Conversation, len(contacts)+len(traffic))
	var order []string

	for _, c := range traffic {
		p := phone.Normalize(c.Phone)
		if p == "" {
			continue
		}
		c.Phone = p
		if existing, ok := byPhone[p]; ok {
			mergeTraffic(existing, c)
			continue
		}
		entry := c
		byPhone[p] = &entry
		order = append(order, p)
	}

	for _, ct := range contacts {
		p := phone.Normalize(ct.Phone)
		if p == "" {
			continue
		}
		entry, ok := byPhone[p]
		if !ok {
			entry = &model.Conversation{Phone: p}
			byPhone[p] = entry
			order = append(order, p)
		}
		entry.ContactID = ct.ID
		if ct.Name != "" {
			entry.Name = ct.Name
		}
		entry.Known = true
	}

	out := make([]model.Conversation, 0, len(order))
	for _, p := range order {
		out = append(out, *byPhone[p])
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.LastMessageAt.Equal(b.LastMessageAt) {
			return a.LastMessageAt.After(b.LastMessageAt)
		}
		if an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name); an != bn {
			return an < bn
		}
		return a.Phone < b.Phone
	})
	return out
}

// mergeTraffic folds a second traffic row for the same number into dst.
func mergeTraffic(dst *model.Conversation, c model.Conversation) {
	dst.MessageCount += c.MessageCount
	if c.LastMessageAt.After(dst.LastMessageAt) {
		dst.LastMessageAt = c.LastMessageAt
		dst.LastMessage = c.LastMessage
	}
	if dst.ContactID == "" && c.ContactID != "" {
		dst.ContactID = c.ContactID
		dst.Known = true
	}
	if dst.Name == "" {
		dst.Name = c.Name
	}
}
