package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/land007/theia/internal/backend"
	"github.com/land007/theia/internal/config"
	"github.com/land007/theia/internal/display"
	"github.com/land007/theia/internal/logging"
	"github.com/land007/theia/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	mu        sync.Mutex
	readyFns  []func()
	closedFns []func()
	quitFns   []func()
	menu      []MenuItem
	external  []string
	exits     []int
}

func (p *fakePlatform) OnReady(fn func()) func()            { return p.on(&p.readyFns, fn) }
func (p *fakePlatform) OnAllWindowsClosed(fn func()) func() { return p.on(&p.closedFns, fn) }
func (p *fakePlatform) OnQuit(fn func()) func()             { return p.on(&p.quitFns, fn) }

func (p *fakePlatform) on(slot *[]func(), fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	*slot = append(*slot, fn)
	return func() {}
}

func (p *fakePlatform) fire(slot *[]func()) {
	p.mu.Lock()
	fns := append([]func(){}, *slot...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *fakePlatform) SetApplicationMenu(items []MenuItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.menu = items
}

func (p *fakePlatform) OpenExternal(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.external = append(p.external, url)
	return nil
}

func (p *fakePlatform) Exit(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exits = append(p.exits, code)
}

func (p *fakePlatform) exitCodes() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int{}, p.exits...)
}

func (p *fakePlatform) menuItems() []MenuItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.menu
}

type stubWindow struct {
	mu        sync.Mutex
	bounds    display.Rect
	destroyed bool
	loaded    []string
}

func (w *stubWindow) Bounds() display.Rect { w.mu.Lock(); defer w.mu.Unlock(); return w.bounds }
func (w *stubWindow) SetBounds(b display.Rect) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bounds = b
}
func (w *stubWindow) IsMaximized() bool { return false }
func (w *stubWindow) Maximize()         {}
func (w *stubWindow) Unmaximize()       {}
func (w *stubWindow) Show()             {}

func (w *stubWindow) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyed = true
}

func (w *stubWindow) isDestroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}

func (w *stubWindow) LoadURL(url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loaded = append(w.loaded, url)
	return nil
}

func (w *stubWindow) SendEvent(event string, payload interface{}) error { return nil }

func (w *stubWindow) OnReadyToShow(fn func()) func()            { return func() {} }
func (w *stubWindow) OnResize(fn func()) func()                 { return func() {} }
func (w *stubWindow) OnMove(fn func()) func()                   { return func() {} }
func (w *stubWindow) OnMaximize(fn func()) func()               { return func() {} }
func (w *stubWindow) OnUnmaximize(fn func()) func()             { return func() {} }
func (w *stubWindow) OnClose(fn func()) func()                  { return func() {} }
func (w *stubWindow) OnNewWindowRequest(fn func(string)) func() { return func() {} }

func (w *stubWindow) loadedURLs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string{}, w.loaded...)
}

type stubCreator struct {
	mu      sync.Mutex
	windows []*stubWindow
}

func (c *stubCreator) Create(bounds display.Rect) (window.Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &stubWindow{bounds: bounds}
	c.windows = append(c.windows, w)
	return w, nil
}

func (c *stubCreator) primary() *stubWindow {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.windows) == 0 {
		return nil
	}
	return c.windows[0]
}

type stubDisplays struct{}

func (stubDisplays) DisplayNearestCursor() display.Rect {
	return display.Rect{Width: 1920, Height: 1080}
}

type nullStore struct{}

func (nullStore) Get(key string, out interface{}) bool    { return false }
func (nullStore) Set(key string, value interface{}) error { return nil }

func newTestController(t *testing.T, run backend.RunFunc) (*Controller, *fakePlatform, *stubCreator) {
	t.Helper()

	cfg := config.Default()
	cfg.App.FrontendURL = "file:///opt/shell/index.html"

	platform := &fakePlatform{}
	creator := &stubCreator{}

	windows := window.NewManager(
		creator, stubDisplays{}, nullStore{}, time.Hour,
		platform.OpenExternal, logging.NewNop(),
	)
	supervisor := backend.NewSupervisor(
		config.BackendConfig{Mode: "direct", HandshakeTimeout: time.Second},
		run, logging.NewNop(),
	)

	ctrl := NewController(cfg, platform, supervisor, windows, logging.NewNop())
	ctrl.Run(context.Background())
	return ctrl, platform, creator
}

func TestBackendReadyLoadsContent(t *testing.T) {
	ctrl, platform, creator := newTestController(t, func(ctx context.Context) (backend.Endpoint, error) {
		return backend.Endpoint{Port: 7777}, nil
	})

	platform.fire(&platform.readyFns)

	require.Eventually(t, func() bool {
		win := creator.primary()
		return win != nil && len(win.loadedURLs()) == 1
	}, time.Second, 5*time.Millisecond)

	url := creator.primary().loadedURLs()[0]
	assert.Contains(t, url, "port=7777")
	assert.Equal(t, StateRunning, ctrl.State())
	assert.Empty(t, platform.exitCodes())
}

func TestBackendFailureExitsWithStatusOne(t *testing.T) {
	_, platform, creator := newTestController(t, func(ctx context.Context) (backend.Endpoint, error) {
		return backend.Endpoint{}, errors.New("spawn failed")
	})

	platform.fire(&platform.readyFns)

	require.Eventually(t, func() bool {
		return len(platform.exitCodes()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []int{1}, platform.exitCodes())

	// No window load is attempted after a fatal handshake failure.
	if win := creator.primary(); win != nil {
		assert.Empty(t, win.loadedURLs())
	}
}

func TestAllWindowsClosedShutsDownOnce(t *testing.T) {
	ctrl, platform, _ := newTestController(t, func(ctx context.Context) (backend.Endpoint, error) {
		return backend.Endpoint{Port: 1}, nil
	})

	platform.fire(&platform.readyFns)
	require.Eventually(t, func() bool {
		return ctrl.State() == StateRunning
	}, time.Second, 5*time.Millisecond)

	platform.fire(&platform.closedFns)
	assert.Equal(t, []int{0}, platform.exitCodes())
	assert.Equal(t, StateShuttingDown, ctrl.State())

	// A later quit event must not tear down a second time.
	platform.fire(&platform.quitFns)
	assert.Equal(t, []int{0}, platform.exitCodes())
}

func TestShutdownDestroysLiveWindows(t *testing.T) {
	ctrl, platform, creator := newTestController(t, func(ctx context.Context) (backend.Endpoint, error) {
		return backend.Endpoint{Port: 1}, nil
	})

	platform.fire(&platform.readyFns)
	require.Eventually(t, func() bool {
		return ctrl.State() == StateRunning
	}, time.Second, 5*time.Millisecond)

	ctrl.Shutdown(0)

	win := creator.primary()
	require.NotNil(t, win)
	assert.True(t, win.isDestroyed(), "shutdown retires the live window")
}

func TestPlaceholderMenuInstalled(t *testing.T) {
	_, platform, _ := newTestController(t, func(ctx context.Context) (backend.Endpoint, error) {
		return backend.Endpoint{Port: 1}, nil
	})

	platform.fire(&platform.readyFns)

	assert.NotEmpty(t, platform.menuItems())
}

type orderedContribution struct {
	name  string
	trace *[]string
	mu    *sync.Mutex
}

func (c *orderedContribution) Name() string { return c.name }

func (c *orderedContribution) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.trace = append(*c.trace, "start:"+c.name)
	return nil
}

func (c *orderedContribution) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.trace = append(*c.trace, "stop:"+c.name)
	return nil
}

func TestContributionsStartInOrderStopInReverse(t *testing.T) {
	ctrl, platform, _ := newTestController(t, func(ctx context.Context) (backend.Endpoint, error) {
		return backend.Endpoint{Port: 1}, nil
	})

	var mu sync.Mutex
	var trace []string
	ctrl.Register(
		&orderedContribution{name: "first", trace: &trace, mu: &mu},
		&orderedContribution{name: "second", trace: &trace, mu: &mu},
	)

	platform.fire(&platform.readyFns)
	require.Eventually(t, func() bool {
		return ctrl.State() == StateRunning
	}, time.Second, 5*time.Millisecond)

	ctrl.Shutdown(0)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"start:first", "start:second", "stop:second", "stop:first"}, trace)
}

func TestActionRequestsOpenExternally(t *testing.T) {
	ctrl, platform, _ := newTestController(t, func(ctx context.Context) (backend.Endpoint, error) {
		return backend.Endpoint{Port: 1}, nil
	})

	ctrl.CreateNewWindow("https://example.com/a")
	ctrl.OpenExternal("https://example.com/b")

	platform.mu.Lock()
	defer platform.mu.Unlock()
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, platform.external)
}

func TestContentURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		port int
		want string
	}{
		{"file url", "file:///opt/shell/index.html", 7777, "file:///opt/shell/index.html?port=7777"},
		{"existing query", "file:///opt/shell/index.html?theme=dark", 80, "file:///opt/shell/index.html?port=80&theme=dark"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contentURL(tt.base, tt.port)
			if !strings.Contains(got, "port=") {
				t.Fatalf("no port parameter in %q", got)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
