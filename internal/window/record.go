package window

import (
	"errors"
	"sync"
	"time"
)

// ErrDestroyed is returned when an operation targets a closed window.
var ErrDestroyed = errors.New("window destroyed")

// Record tracks one live window and its persistence state. Records are
// created by the Manager and referenced, never owned, by event dispatchers.
type Record struct {
	id       string
	win      Window
	stateKey string

	mu        sync.Mutex
	restored  Snapshot // last known unmaximized bounds
	destroyed bool
	saveTimer *time.Timer
	cancels   []func()
}

// ID returns the record's identity.
func (r *Record) ID() string {
	return r.id
}

// Destroyed reports whether the window has closed.
func (r *Record) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

// Send delivers an event to the window's content.
func (r *Record) Send(event string, payload interface{}) error {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return ErrDestroyed
	}
	win := r.win
	r.mu.Unlock()
	return win.SendEvent(event, payload)
}

// LoadURL points the window's content at url.
func (r *Record) LoadURL(url string) error {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return ErrDestroyed
	}
	win := r.win
	r.mu.Unlock()
	return win.LoadURL(url)
}

// captureLocked builds the snapshot to persist; r.mu must be held. While
// maximized the OS-reported bounds are not meaningful restored geometry, so
// the last restored snapshot is reused with only the maximized flag updated.
func (r *Record) captureLocked() Snapshot {
	if r.win.IsMaximized() {
		s := r.restored
		s.IsMaximized = true
		return s
	}

	s := FromRect(r.win.Bounds(), false)
	r.restored = s
	return s
}
