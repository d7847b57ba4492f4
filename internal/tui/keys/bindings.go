package keys

import "github.com/gdamore/tcell/v2"

// Action is one key binding.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Visible     bool
}

// Matches reports whether ev triggers the action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Registry holds bindings per page, plus globals that apply everywhere.
// Order of registration is the order of hints and of matching.
type Registry struct {
	global []*Action
	views  map[string][]*Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string][]*Action)}
}

// AddGlobal registers a binding active on every page.
func (r *Registry) AddGlobal(a *Action) {
	r.global = append(r.global, a)
}

// AddView registers a binding for one page. View bindings shadow globals on
// the same key.
func (r *Registry) AddView(view string, a *Action) {
	r.views[view] = append(r.views[view], a)
}

// Hints returns the visible descriptions for a page, page bindings first.
func (r *Registry) Hints(view string) []string {
	var hints []string
	for _, a := range r.views[view] {
		if a.Visible {
			hints = append(hints, a.Description)
		}
	}
	for _, a := range r.global {
		if a.Visible {
			hints = append(hints, a.Description)
		}
	}
	return hints
}

// HandleEvent runs the first binding matching ev on the page and reports
// whether one ran.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	for _, a := range r.views[view] {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	for _, a := range r.global {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	return false
}
