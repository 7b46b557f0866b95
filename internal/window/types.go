package window

import "github.com/land007/theia/internal/display"

// StateKey is the store key under which the primary window's geometry lives.
const StateKey = "windowstate"

// Snapshot is a window's persisted geometry. While a window is maximized the
// snapshot keeps the last restored bounds, never the maximized OS bounds.
type Snapshot struct {
	IsMaximized bool `json:"isMaximized,omitempty"`
	Width       int  `json:"width"`
	Height      int  `json:"height"`
	X           int  `json:"x"`
	Y           int  `json:"y"`
}

// FromRect builds a snapshot from screen bounds.
func FromRect(r display.Rect, maximized bool) Snapshot {
	return Snapshot{
		IsMaximized: maximized,
		Width:       r.Width,
		Height:      r.Height,
		X:           r.X,
		Y:           r.Y,
	}
}

// Rect returns the snapshot's bounds.
func (s Snapshot) Rect() display.Rect {
	return display.Rect{
		X:      s.X,
		Y:      s.Y,
		Width:  s.Width,
		Height: s.Height,
	}
}

// Window is the toolkit surface the manager drives. Implementations wrap a
// concrete toolkit window; tests substitute fakes.
//
// Event subscriptions return a cancel func that releases the subscription.
type Window interface {
	Bounds() display.Rect
	SetBounds(display.Rect)
	IsMaximized() bool
	Maximize()
	Unmaximize()
	Show()
	LoadURL(url string) error
	SendEvent(event string, payload interface{}) error
	Destroy()

	OnReadyToShow(fn func()) (cancel func())
	OnResize(fn func()) (cancel func())
	OnMove(fn func()) (cancel func())
	OnMaximize(fn func()) (cancel func())
	OnUnmaximize(fn func()) (cancel func())
	OnClose(fn func()) (cancel func())
	OnNewWindowRequest(fn func(url string)) (cancel func())
}

// Creator produces toolkit windows. Windows must be created hidden; the
// manager shows them once their content signals ready-to-show.
type Creator interface {
	Create(bounds display.Rect) (Window, error)
}
