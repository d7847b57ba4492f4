package model

import (
	"sync"
	"time"
)

// Flash holds one transient notice for the status bar.
type Flash struct {
	mu      sync.RWMutex
	message string
	expires time.Time
}

// Set stores msg until d has elapsed.
func (f *Flash) Set(msg string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.expires = time.Now().Add(d)
}

// Notify sets msg for the default duration; empty messages are ignored.
func (f *Flash) Notify(msg string) {
	if msg != "" {
		f.Set(msg, flashFor)
	}
}

// Get returns the current notice, or "" once it expired.
func (f *Flash) Get() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.expires) {
		return ""
	}
	return f.message
}
