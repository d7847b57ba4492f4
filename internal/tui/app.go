package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/talentpipe/inboxsync/internal/api"
	"github.com/talentpipe/inboxsync/internal/tui/keys"
	"github.com/talentpipe/inboxsync/internal/tui/model"
	"github.com/talentpipe/inboxsync/internal/tui/ui"
	"github.com/talentpipe/inboxsync/internal/tui/views"
)

// Page names.
const (
	pageConversations = "conversations"
	pageThread        = "thread"
	pagePairing       = "pairing"
)

const callTimeout = 10 * time.Second

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	vm        *model.ViewModel
	client    model.Client
	registry  *keys.Registry
	theme     *ui.Theme
	statusBar *views.StatusBar
	convList  *views.ConversationList
	thread    *views.Thread
	composer  *views.Composer
	pairing   *views.Pairing
	prompt    *tview.InputField
	root      *tview.Flex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI for one profile's daemon.
func NewApp(c model.Client, profileName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        model.NewViewModel(c),
		client:    c,
		registry:  keys.NewRegistry(),
		theme:     theme,
		statusBar: views.NewStatusBar(theme, profileName),
		convList:  views.NewConversationList(theme),
		thread:    views.NewThread(theme),
		composer:  views.NewComposer(theme),
		pairing:   views.NewPairing(theme),
		prompt:    tview.NewInputField().SetLabel(" : ").SetFieldWidth(0),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "q:quit", Visible: true,
		Handler: a.Stop,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':', Description: ":cmd", Visible: true,
		Handler: a.showPrompt,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'p', Description: "p:pairing", Visible: true,
		Handler: func() { a.switchTo(pagePairing) },
	})

	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyEnter, Description: "enter:open", Visible: true,
		Handler: func() {
			if c, ok := a.convList.Selected(); ok {
				a.openConversation(c.Phone, c.ContactID)
			}
		},
	})
	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "r:refresh", Visible: true,
		Handler: func() { a.load(model.ReloadConversations, true) },
	})

	a.registry.AddView(pageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Description: "i:write", Visible: true,
		Handler: func() { a.app.SetFocus(a.composer) },
	})
	a.registry.AddView(pageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "r:resend failed", Visible: true,
		Handler: a.resendLastFailed,
	})

	a.registry.AddView(pagePairing, &keys.Action{
		Key: tcell.KeyRune, Rune: 'c', Description: "c:connect", Visible: true,
		Handler: a.connectSelected,
	})
	a.registry.AddView(pagePairing, &keys.Action{
		Key: tcell.KeyRune, Rune: 'd', Description: "d:dismiss", Visible: true,
		Handler: func() { a.onSelectedSession(a.vm.Dismiss) },
	})
	a.registry.AddView(pagePairing, &keys.Action{
		Key: tcell.KeyRune, Rune: 'x', Description: "x:logout", Visible: true,
		Handler: func() { a.onSelectedSession(a.vm.Disconnect) },
	})
	a.registry.AddView(pagePairing, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "r:refresh", Visible: true,
		Handler: func() { a.load(model.ReloadSessions, true) },
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, _ int) {
		if c, ok := a.convList.Selected(); ok {
			a.openConversation(c.Phone, c.ContactID)
		}
	})

	a.composer.SetOnSend(func(text string) {
		a.async(func(ctx context.Context) error {
			return a.vm.Send(ctx, text)
		}, "Send failed: ", a.renderThread)
	})
	a.composer.SetOnDone(func() { a.app.SetFocus(a.thread) })

	a.pairing.SetSelectionChangedFunc(func(s api.SessionInfo) { a.pairing.Show(s) })

	a.prompt.SetDoneFunc(func(key tcell.Key) {
		line := a.prompt.GetText()
		a.hidePrompt()
		if key == tcell.KeyEnter {
			a.run(ParseCommand(line))
		}
	})
}

func (a *App) setupLayout() {
	threadFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage(pageConversations, a.convList, true, true)
	a.pages.AddPage(pageThread, threadFlex, true, false)
	a.pages.AddPage(pagePairing, a.pairing, true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)
	a.app.SetRoot(a.root, true)
	a.statusBar.SetHints(a.registry.Hints(pageConversations))

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		page, _ := a.pages.GetFrontPage()

		// Text inputs get every key; Esc is handled by their done funcs.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}
		if event.Key() == tcell.KeyEscape && page != pageConversations {
			a.switchTo(pageConversations)
			return nil
		}
		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

func (a *App) switchTo(page string) {
	a.pages.SwitchToPage(page)
	a.statusBar.SetHints(a.registry.Hints(page))
	switch page {
	case pageConversations:
		a.app.SetFocus(a.convList)
	case pageThread:
		a.app.SetFocus(a.thread)
	case pagePairing:
		a.app.SetFocus(a.pairing.Table())
		a.load(model.ReloadSessions, false)
	}
}

func (a *App) showPrompt() {
	a.prompt.SetText("")
	a.root.RemoveItem(a.statusBar)
	a.root.AddItem(a.prompt, 1, 0, true)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.RemoveItem(a.prompt)
	a.root.AddItem(a.statusBar, 1, 0, false)
	page, _ := a.pages.GetFrontPage()
	a.switchTo(page)
}

// run executes a prompt command.
func (a *App) run(cmd Command) {
	switch cmd.Name {
	case "":
	case "q", "quit":
		a.Stop()
	case "o", "open":
		if cmd.Arg(0) == "" {
			a.flash("usage: :open PHONE [CONTACT_ID]")
			return
		}
		a.openConversation(cmd.Arg(0), cmd.Arg(1))
	case "r", "refresh":
		a.load(model.ReloadStatus|model.ReloadSessions|model.ReloadConversations|model.ReloadThread, true)
	case "p", "pair", "pairing":
		a.switchTo(pagePairing)
	case "resend":
		a.resendLastFailed()
	default:
		a.flash("unknown command: " + cmd.Name)
	}
}

func (a *App) openConversation(phone, contactID string) {
	a.thread.SetName(phone)
	a.thread.Update(nil)
	a.switchTo(pageThread)
	a.async(func(ctx context.Context) error {
		return a.vm.Open(ctx, phone, contactID)
	}, "Open failed: ", func() {
		a.thread.SetName(a.vm.Title())
		a.renderThread()
		a.statusBar.SetStatus(a.vm.Status())
	})
}

func (a *App) resendLastFailed() {
	a.async(func(ctx context.Context) error {
		ok, err := a.vm.ResendLastFailed(ctx)
		if err == nil && !ok {
			a.vm.Flash.Notify("Nothing to resend in this conversation")
		}
		return err
	}, "Resend failed: ", a.renderThread)
}

func (a *App) connectSelected() {
	s, ok := a.pairing.Selected()
	if !ok {
		return
	}
	a.async(func(ctx context.Context) error {
		_, err := a.vm.Connect(ctx, s.ID)
		return err
	}, "Connect failed: ", a.renderSessions)
}

func (a *App) onSelectedSession(fn func(ctx context.Context, id string) error) {
	s, ok := a.pairing.Selected()
	if !ok {
		return
	}
	a.async(func(ctx context.Context) error { return fn(ctx, s.ID) }, "", a.renderSessions)
}

// async runs fn off the UI goroutine, then draws. Errors go to the flash,
// prefixed with what failed.
func (a *App) async(fn func(ctx context.Context) error, prefix string, draw func()) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.vm.Flash.Notify(prefix + describe(err))
		}
		a.app.QueueUpdateDraw(func() {
			if draw != nil {
				draw()
			}
			a.statusBar.SetFlash(a.vm.Flash.Get())
		})
	}()
}

// load refetches the parts named by what and redraws them.
func (a *App) load(what model.Reload, refresh bool) {
	a.async(func(ctx context.Context) error {
		var first error
		keep := func(err error) {
			if first == nil {
				first = err
			}
		}
		if what.Has(model.ReloadStatus) {
			keep(a.vm.LoadStatus(ctx))
		}
		if what.Has(model.ReloadSessions) {
			keep(a.vm.LoadSessions(ctx, refresh))
		}
		if what.Has(model.ReloadConversations) {
			keep(a.vm.LoadConversations(ctx, refresh))
		}
		if what.Has(model.ReloadThread) {
			keep(a.vm.LoadThread(ctx))
		}
		return first
	}, "", func() { a.render(what) })
}

func (a *App) render(what model.Reload) {
	if what.Has(model.ReloadStatus) {
		a.statusBar.SetStatus(a.vm.Status())
		a.composer.SetEnabled(a.vm.Status().Connected)
	}
	if what.Has(model.ReloadSessions) {
		a.renderSessions()
	}
	if what.Has(model.ReloadConversations) {
		a.convList.Update(a.vm.Conversations())
	}
	if what.Has(model.ReloadThread) {
		a.renderThread()
	}
}

func (a *App) renderThread() {
	a.thread.Update(a.vm.Thread())
}

func (a *App) renderSessions() {
	a.pairing.Update(a.vm.Sessions())
}

func (a *App) flash(msg string) {
	a.vm.Flash.Notify(msg)
	a.statusBar.SetFlash(a.vm.Flash.Get())
}

// Run loads the initial state, opens the pairing page when no session is
// connected, and blocks until the user quits.
func (a *App) Run() error {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
		_ = a.vm.LoadStatus(ctx)
		_ = a.vm.LoadSessions(ctx, false)
		_ = a.vm.LoadConversations(ctx, false)
		_ = a.vm.LoadThread(ctx)
		cancel()

		a.app.QueueUpdateDraw(func() {
			a.render(model.ReloadStatus | model.ReloadSessions | model.ReloadConversations | model.ReloadThread)
			if !a.vm.AnyConnected() {
				a.switchTo(pagePairing)
			}
		})

		go a.watch()
		a.tick()
	}()
	return a.app.Run()
}

// tick clears expired flashes and keeps the clock current.
func (a *App) tick() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() { a.statusBar.SetFlash(a.vm.Flash.Get()) })
		case <-a.ctx.Done():
			return
		}
	}
}

// Stop shuts the TUI down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
