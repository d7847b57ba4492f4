package pairing

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/talentpipe/inboxsync/internal/backend"
	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/model"
)

// startPollLocked replaces any running poll for id.
func (c *Controller) startPollLocked(id string, a *account) {
	c.stopPollLocked(id)
	ctx, cancel := context.WithCancel(c.ctx)
	h := &pollHandle{cancel: cancel}
	a.poll = h
	c.wg.Add(1)
	go c.poll(ctx, id, h)
}

func (c *Controller) stopPollLocked(id string) {
	a := c.accounts[id]
	if a == nil || a.poll == nil {
		return
	}
	a.poll.cancel()
	a.poll = nil
}

// poll waits GraceDelay, then asks for the status every Interval until a
// terminal answer or MaxElapsed since the start, whichever comes first.
func (c *Controller) poll(ctx context.Context, id string, h *pollHandle) {
	defer c.wg.Done()
	defer h.cancel()

	limit, stop := context.WithTimeout(ctx, c.opts.MaxElapsed)
	defer stop()
	log := c.logger.With(zap.String("session_id", id))

	if !c.wait(limit, c.opts.GraceDelay) {
		c.endPoll(ctx, id, h, 0)
		return
	}

	polls, disconnects := 0, 0
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	for {
		s, err := c.api.SessionStatus(limit, id)
		polls++
		if limit.Err() != nil {
			c.endPoll(ctx, id, h, polls)
			return
		}
		switch {
		case errors.Is(err, backend.ErrNotFound):
			log.Info("session gone while pairing")
			c.finish(id, h, model.SessionDisconnected)
			return
		case err != nil:
			log.Warn("status poll failed", zap.Error(err))
			disconnects = 0
		case s.Status == model.SessionConnected, s.Status == model.SessionError:
			c.finish(id, h, s.Status)
			return
		case s.Status == model.SessionDisconnected:
			disconnects++
			if disconnects >= c.opts.DisconnectConfirmations {
				c.finish(id, h, model.SessionDisconnected)
				return
			}
		default:
			disconnects = 0
			log.Debug("pairing still in progress", zap.String("status", string(s.Status)))
		}

		select {
		case <-ticker.C:
		case <-limit.Done():
			c.endPoll(ctx, id, h, polls)
			return
		}
	}
}

func (c *Controller) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// endPoll distinguishes cancellation, which applies nothing, from the
// overall timeout, which abandons the pairing.
func (c *Controller) endPoll(ctx context.Context, id string, h *pollHandle, polls int) {
	if ctx.Err() != nil {
		return
	}
	c.abandon(id, h, polls)
}

// finish applies a terminal poll answer if h is still the session's poll.
func (c *Controller) finish(id string, h *pollHandle, to model.SessionStatus) {
	var events []bus.Event
	c.mu.Lock()
	a := c.accounts[id]
	if a == nil || a.poll != h {
		c.mu.Unlock()
		return
	}
	a.poll = nil
	if evt, err := c.transitionLocked(id, a, to); err == nil {
		events = append(events, evt)
	}
	if a.pairing {
		a.pairing = false
		a.rawCode = ""
		events = append(events, bus.NewEvent(bus.PairingDismissed, id))
	}
	c.mu.Unlock()
	c.logger.Info("pairing poll finished", zap.String("session_id", id), zap.String("status", string(to)))
	c.publish(events...)
}

// abandon gives up after the overall timeout: the session returns to
// disconnected and the pairing view is dismissed.
func (c *Controller) abandon(id string, h *pollHandle, polls int) {
	var events []bus.Event
	c.mu.Lock()
	a := c.accounts[id]
	if a == nil || a.poll != h {
		c.mu.Unlock()
		return
	}
	a.poll = nil
	if a.state != model.SessionDisconnected {
		if evt, err := c.transitionLocked(id, a, model.SessionDisconnected); err == nil {
			events = append(events, evt)
		}
	}
	a.pairing = false
	a.rawCode = ""
	c.mu.Unlock()

	c.logger.Warn("pairing abandoned", zap.String("session_id", id), zap.Int("polls", polls))
	events = append(events,
		bus.NewEvent(bus.PairingAbandoned, Abandoned{SessionID: id, Polls: polls}),
		bus.NewEvent(bus.PairingDismissed, id))
	c.publish(events...)
}
