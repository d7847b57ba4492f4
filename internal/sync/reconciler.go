package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/model"
	"github.com/talentpipe/inboxsync/internal/phone"
	"github.com/talentpipe/inboxsync/internal/selection"
	"github.com/talentpipe/inboxsync/internal/store"
)

// Open selects a conversation, subscribes to it and loads its history. It
// blocks until the history has been applied, or returns ErrSuperseded if
// another Open won the race. A missing contact id is filled in from the
// conversation list.
func (e *Engine) Open(ctx context.Context, rawPhone, contactID string) (selection.Selection, error) {
	p := phone.Normalize(rawPhone)
	if p == "" {
		return selection.Selection{}, ErrNoPhone
	}
	if contactID == "" {
		if c, ok := e.dir.Lookup(p); ok {
			contactID = c.ContactID
		}
	}

	tok := e.sel.Select(p, contactID)
	cur := selection.Selection(tok)
	e.rememberSelection(cur)
	e.subscribe(cur)

	return e.fetch(ctx, tok)
}

// Deselect closes the open conversation. Outstanding fetches become stale.
func (e *Engine) Deselect() {
	e.sel.Clear()
	e.rememberSelection(selection.Selection{})
}

// fetch loads history for tok and applies it only if tok is still current.
// A failed fetch applies an empty history.
func (e *Engine) fetch(ctx context.Context, tok selection.Token) (selection.Selection, error) {
	if !e.track() {
		return selection.Selection{}, context.Canceled
	}
	defer e.wg.Done()

	ctx, cancel := mergeCancel(ctx, e.ctx)
	defer cancel()

	var (
		history []model.Message
		err     error
	)
	if tok.ContactID != "" {
		history, err = e.api.HistoryByContact(ctx, tok.ContactID)
	} else {
		history, err = e.api.HistoryByPhone(ctx, tok.Phone)
	}
	if err != nil {
		if ctx.Err() != nil {
			return selection.Selection{}, ctx.Err()
		}
		e.logger.Warn("history fetch failed, showing empty thread",
			zap.String("phone", tok.Phone), zap.String("contact_id", tok.ContactID), zap.Error(err))
		history = nil
	}

	var applied selection.Selection
	ok := e.sel.WithCurrent(tok, func(cur selection.Selection) {
		e.msgs.Replace(cur.Phone, history)
		applied = cur
	})
	if !ok {
		e.logger.Debug("discarding stale history",
			zap.String("phone", tok.Phone), zap.Uint64("generation", tok.Generation))
		e.bus.Emit(bus.HistoryDiscarded, tok)
		return selection.Selection{}, ErrSuperseded
	}
	return applied, nil
}

func (e *Engine) rememberSelection(cur selection.Selection) {
	if e.journal == nil {
		return
	}
	if err := e.journal.SetState(store.KeyLastPhone, cur.Phone); err != nil {
		e.logger.Warn("failed to persist selection", zap.Error(err))
		return
	}
	if err := e.journal.SetState(store.KeyLastContactID, cur.ContactID); err != nil {
		e.logger.Warn("failed to persist selection", zap.Error(err))
	}
}

// restoreSelection re-opens the conversation that was selected when the
// previous daemon stopped. History arrives asynchronously.
func (e *Engine) restoreSelection() {
	if e.journal == nil {
		return
	}
	p, err := e.journal.GetState(store.KeyLastPhone)
	if err != nil || p == "" {
		return
	}
	cid, _ := e.journal.GetState(store.KeyLastContactID)
	tok := e.sel.Select(p, cid)
	e.logger.Info("restoring selection", zap.String("phone", p))

	if !e.track() {
		return
	}
	go func() {
		defer e.wg.Done()
		_, _ = e.fetch(e.ctx, tok)
	}()
}

// mergeCancel returns a context cancelled when either parent is.
func mergeCancel(ctx, owner context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(owner, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
