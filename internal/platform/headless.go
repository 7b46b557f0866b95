// Package platform provides a headless implementation of the toolkit
// collaborator interfaces. It stands in for a real display toolkit in
// development runs; production builds substitute toolkit-backed adapters.
package platform

import (
	"sync"

	"github.com/land007/theia/internal/app"
	"github.com/land007/theia/internal/display"
	"github.com/land007/theia/internal/logging"
	"github.com/land007/theia/internal/window"
	"go.uber.org/zap"
)

// Headless drives the controller without a display server. Ready fires as
// soon as Run is called; Exit unblocks Run with the exit code.
type Headless struct {
	log *logging.Logger

	mu        sync.Mutex
	readyFns  []func()
	closedFns []func()
	quitFns   []func()
	exitCode  int
	done      chan struct{}
	exited    bool
	windows   int
}

// NewHeadless creates the headless platform.
func NewHeadless(log *logging.Logger) *Headless {
	return &Headless{
		log:  log,
		done: make(chan struct{}),
	}
}

// Run fires the ready event and blocks until Exit. Returns the exit code.
func (p *Headless) Run() int {
	p.mu.Lock()
	fns := append([]func(){}, p.readyFns...)
	p.mu.Unlock()

	for _, fn := range fns {
		fn()
	}

	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// OnReady implements app.Platform.
func (p *Headless) OnReady(fn func()) func() {
	return p.subscribe(&p.readyFns, fn)
}

// OnAllWindowsClosed implements app.Platform.
func (p *Headless) OnAllWindowsClosed(fn func()) func() {
	return p.subscribe(&p.closedFns, fn)
}

// OnQuit implements app.Platform.
func (p *Headless) OnQuit(fn func()) func() {
	return p.subscribe(&p.quitFns, fn)
}

// Quit fires the quit event.
func (p *Headless) Quit() {
	p.fire(&p.quitFns)
}

// SetApplicationMenu implements app.Platform. Headless runs have no menu bar.
func (p *Headless) SetApplicationMenu(items []app.MenuItem) {
	p.log.Debug("application menu set", zap.Int("items", len(items)))
}

// OpenExternal implements app.Platform. Headless runs only log the request.
func (p *Headless) OpenExternal(url string) error {
	p.log.Info("open external url", zap.String("url", url))
	return nil
}

// Exit implements app.Platform.
func (p *Headless) Exit(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return
	}
	p.exited = true
	p.exitCode = code
	close(p.done)
}

func (p *Headless) subscribe(slot *[]func(), fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	*slot = append(*slot, fn)
	idx := len(*slot) - 1
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		(*slot)[idx] = func() {}
	}
}

func (p *Headless) fire(slot *[]func()) {
	p.mu.Lock()
	fns := append([]func(){}, *slot...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *Headless) windowDestroyed() {
	p.mu.Lock()
	p.windows--
	closed := p.windows == 0
	p.mu.Unlock()
	if closed {
		p.fire(&p.closedFns)
	}
}

// FixedDisplay is a display.Source with one static display.
type FixedDisplay struct {
	Bounds display.Rect
}

// DisplayNearestCursor implements display.Source.
func (d FixedDisplay) DisplayNearestCursor() display.Rect {
	if d.Bounds.Width == 0 {
		return display.Rect{Width: 1920, Height: 1080}
	}
	return d.Bounds
}

// StaticLayout is a keyboard.Source with a fixed layout and a manual trigger.
type StaticLayout struct {
	Info    interface{}
	Mapping interface{}

	mu  sync.Mutex
	fns []func()
}

// Current implements keyboard.Source.
func (s *StaticLayout) Current() (interface{}, interface{}, error) {
	return s.Info, s.Mapping, nil
}

// OnChange implements keyboard.Source.
func (s *StaticLayout) OnChange(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, fn)
	idx := len(s.fns) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.fns[idx] = func() {}
	}
}

// Trigger fires a layout-change notification.
func (s *StaticLayout) Trigger() {
	s.mu.Lock()
	fns := append([]func(){}, s.fns...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Creator builds headless windows tied to the platform's window count.
type Creator struct {
	Platform *Headless
	Log      *logging.Logger
}

// Create implements window.Creator.
func (c *Creator) Create(bounds display.Rect) (window.Window, error) {
	c.Platform.mu.Lock()
	c.Platform.windows++
	c.Platform.mu.Unlock()

	return &headlessWindow{platform: c.Platform, log: c.Log, bounds: bounds}, nil
}

// headlessWindow records geometry operations and logs content interactions.
type headlessWindow struct {
	platform *Headless
	log      *logging.Logger

	mu        sync.Mutex
	bounds    display.Rect
	maximized bool
	visible   bool
	destroyed bool

	readyFns  []func()
	resizeFns []func()
	moveFns   []func()
	maxFns    []func()
	unmaxFns  []func()
	closeFns  []func()
	newWinFns []func(string)
}

func (w *headlessWindow) Bounds() display.Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds
}

func (w *headlessWindow) SetBounds(b display.Rect) {
	w.mu.Lock()
	w.bounds = b
	w.mu.Unlock()
}

func (w *headlessWindow) IsMaximized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maximized
}

func (w *headlessWindow) Maximize() {
	w.mu.Lock()
	w.maximized = true
	fns := append([]func(){}, w.maxFns...)
	w.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (w *headlessWindow) Unmaximize() {
	w.mu.Lock()
	w.maximized = false
	fns := append([]func(){}, w.unmaxFns...)
	w.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (w *headlessWindow) Show() {
	w.mu.Lock()
	w.visible = true
	w.mu.Unlock()
}

func (w *headlessWindow) LoadURL(url string) error {
	w.log.Info("window load", zap.String("url", url))
	return nil
}

func (w *headlessWindow) SendEvent(event string, payload interface{}) error {
	w.log.Debug("window event", zap.String("event", event))
	return nil
}

func (w *headlessWindow) Destroy() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	w.destroyed = true
	fns := append([]func(){}, w.closeFns...)
	w.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	w.platform.windowDestroyed()
}

func (w *headlessWindow) OnReadyToShow(fn func()) func() {
	return w.on(&w.readyFns, fn)
}

func (w *headlessWindow) OnResize(fn func()) func() {
	return w.on(&w.resizeFns, fn)
}

func (w *headlessWindow) OnMove(fn func()) func() {
	return w.on(&w.moveFns, fn)
}

func (w *headlessWindow) OnMaximize(fn func()) func() {
	return w.on(&w.maxFns, fn)
}

func (w *headlessWindow) OnUnmaximize(fn func()) func() {
	return w.on(&w.unmaxFns, fn)
}

func (w *headlessWindow) OnClose(fn func()) func() {
	return w.on(&w.closeFns, fn)
}

func (w *headlessWindow) OnNewWindowRequest(fn func(string)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.newWinFns = append(w.newWinFns, fn)
	idx := len(w.newWinFns) - 1
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.newWinFns[idx] = func(string) {}
	}
}

func (w *headlessWindow) on(slot *[]func(), fn func()) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	*slot = append(*slot, fn)
	idx := len(*slot) - 1
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		(*slot)[idx] = func() {}
	}
}
