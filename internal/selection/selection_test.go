package selection

import (
	"sync"
	"testing"

	"github.com/talentpipe/inboxsync/internal/bus"
)

func TestSelectBumpsGeneration(t *testing.T) {
	a := New(nil)
	t1 := a.Select("5511999990000", "")
	t2 := a.Select("5511988887777", "7")

	if t2.Generation != t1.Generation+1 {
		t.Errorf("generation = %d, want %d", t2.Generation, t1.Generation+1)
	}
	if a.Valid(t1) {
		t.Error("token from previous selection still valid")
	}
	if !a.Valid(t2) {
		t.Error("current token invalid")
	}
	cur := a.Current()
	if cur.Phone != "5511988887777" || cur.ContactID != "7" {
		t.Errorf("Current() = %+v", cur)
	}
}

func TestMatches(t *testing.T) {
	a := New(nil)
	if a.Matches("", "") {
		t.Error("empty selection matched empty identity")
	}
	a.Select("+55 11 99999-0000", "7")

	tests := []struct {
		name      string
		phone     string
		contactID string
		want      bool
	}{
		{"phone", "5511999990000", "", true},
		{"jid", "5511999990000@s.whatsapp.net", "", true},
		{"contact", "", "7", true},
		{"contact wins over other phone", "5511000000000", "7", true},
		{"phone wins over other contact", "5511999990000", "8", true},
		{"neither", "5511000000000", "8", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Matches(tt.phone, tt.contactID); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.phone, tt.contactID, got, tt.want)
			}
		})
	}
}

// A frame for A after select(A), select(B) must not be routed to B.
func TestMatchesReadsLatestSelection(t *testing.T) {
	a := New(nil)
	a.Select("5511111111111", "")
	a.Select("5522222222222", "")
	if a.Matches("5511111111111", "") {
		t.Error("frame for previous selection matched")
	}
}

func TestWithCurrentRejectsStaleToken(t *testing.T) {
	a := New(nil)
	stale := a.Select("5511111111111", "")
	a.Select("5522222222222", "")

	called := false
	if a.WithCurrent(stale, func(Selection) { called = true }) || called {
		t.Error("stale token applied")
	}

	cur := a.Select("5533333333333", "")
	var seen Selection
	if !a.WithCurrent(cur, func(s Selection) { seen = s }) {
		t.Fatal("current token rejected")
	}
	if seen.Phone != "5533333333333" {
		t.Errorf("fn saw %+v", seen)
	}
}

func TestWithMatch(t *testing.T) {
	a := New(nil)
	a.Select("5511111111111", "")
	if a.WithMatch("5522222222222", "", func(Selection) {}) {
		t.Error("WithMatch ran for another conversation")
	}
	if !a.WithMatch("5511111111111", "", func(Selection) {}) {
		t.Error("WithMatch did not run for the selected conversation")
	}
}

func TestLink(t *testing.T) {
	a := New(nil)
	tok := a.Select("5511111111111", "")
	if !a.Link("5511111111111", "9") {
		t.Fatal("Link() = false")
	}
	if !a.Valid(tok) {
		t.Error("Link must not invalidate tokens")
	}
	if a.Link("5511111111111", "10") {
		t.Error("Link overwrote an existing contact id")
	}
	if got := a.Current().ContactID; got != "9" {
		t.Errorf("ContactID = %q, want 9", got)
	}
}

func TestSelectPublishes(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.SelectionChanged, 1)
	defer unsub()

	a := New(b)
	a.Select("5511999990000", "")
	evt := <-ch
	sel, ok := evt.Payload.(Selection)
	if !ok || sel.Phone != "5511999990000" || sel.Generation != 1 {
		t.Errorf("payload = %#v", evt.Payload)
	}
}

func TestConcurrentSelect(t *testing.T) {
	a := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := a.Select("5511999990000", "")
			_ = a.Matches("5511999990000", "")
			_ = a.Valid(tok)
		}()
	}
	wg.Wait()
	if got := a.Current().Generation; got != 50 {
		t.Errorf("Generation = %d, want 50", got)
	}
}
