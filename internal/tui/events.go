package tui

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/talentpipe/inboxsync/internal/api"
	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/tui/model"
)

var errStreamClosed = errors.New("event stream closed by daemon")

// watch follows the daemon's event stream for the life of the app,
// redialing with backoff when the stream breaks.
func (a *App) watch() {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0

	op := func() error {
		err := a.client.Watch(a.ctx, "", func(evt api.Event) error {
			b.Reset()
			a.handle(evt)
			return nil
		})
		if a.ctx.Err() != nil {
			return backoff.Permanent(a.ctx.Err())
		}
		if err == nil {
			err = errStreamClosed
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		a.vm.SetConnected(false)
		a.vm.Flash.Set("Daemon unreachable, retrying: "+describe(err), wait+time.Second)
		a.app.QueueUpdateDraw(func() {
			a.render(model.ReloadStatus)
			a.statusBar.SetFlash(a.vm.Flash.Get())
		})
	}
	_ = backoff.RetryNotify(op, backoff.WithContext(b, a.ctx), notify)
}

// handle applies one event: pairing codes go straight to the view model,
// everything else triggers the reloads Plan names.
func (a *App) handle(evt api.Event) {
	switch evt.Kind {
	case bus.PairingCode:
		id, _ := evt.Payload["SessionID"].(string)
		raw, _ := evt.Payload["Raw"].(string)
		picture, _ := evt.Payload["Image"].(string)
		a.vm.SetCode(id, raw, picture)
		a.app.QueueUpdateDraw(a.renderSessions)
	case bus.ChannelConnected:
		a.vm.SetConnected(true)
	case bus.ChannelDisconnected:
		a.vm.SetConnected(false)
	}

	a.vm.Flash.Notify(model.Notice(evt))
	if what := model.Plan(evt, a.vm.Phone()); what != 0 {
		a.load(what, false)
	} else {
		a.app.QueueUpdateDraw(func() { a.statusBar.SetFlash(a.vm.Flash.Get()) })
	}
}

// describe turns RPC errors into their message without the gRPC framing.
func describe(err error) string {
	if s, ok := grpcstatus.FromError(err); ok {
		return s.Message()
	}
	return err.Error()
}
