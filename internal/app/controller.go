package app

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/land007/theia/internal/backend"
	"github.com/land007/theia/internal/config"
	"github.com/land007/theia/internal/logging"
	"github.com/land007/theia/internal/window"
	"go.uber.org/zap"
)

// LifecycleState is the whole-application state machine. There is no
// re-entry: Bootstrapping -> Running -> ShuttingDown.
type LifecycleState int

const (
	StateBootstrapping LifecycleState = iota
	StateRunning
	StateShuttingDown
)

// MenuItem is a minimal application menu entry.
type MenuItem struct {
	Label string
	Role  string
}

// Platform is the toolkit application surface the controller drives.
// Event subscriptions return cancel funcs releasing the subscription.
type Platform interface {
	OnReady(fn func()) (cancel func())
	OnAllWindowsClosed(fn func()) (cancel func())
	OnQuit(fn func()) (cancel func())
	SetApplicationMenu(items []MenuItem)
	OpenExternal(url string) error
	Exit(code int)
}

// Controller is the top-level orchestrator: it owns the backend supervisor,
// creates the primary window, wires content action requests and manages
// whole-application shutdown.
type Controller struct {
	cfg           *config.Config
	platform      Platform
	supervisor    *backend.Supervisor
	windows       *window.Manager
	contributions []Contribution
	log           *logging.Logger

	mu      sync.Mutex
	state   LifecycleState
	cancels []func()

	shutdownOnce sync.Once
}

// NewController creates the application controller.
func NewController(cfg *config.Config, platform Platform, supervisor *backend.Supervisor, windows *window.Manager, log *logging.Logger) *Controller {
	return &Controller{
		cfg:        cfg,
		platform:   platform,
		supervisor: supervisor,
		windows:    windows,
		log:        log,
		state:      StateBootstrapping,
	}
}

// Register appends contributions in start order.
func (c *Controller) Register(contribs ...Contribution) {
	c.contributions = append(c.contributions, contribs...)
}

// State returns the current lifecycle state.
func (c *Controller) State() LifecycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run wires the platform events and returns; the platform event loop drives
// everything from here.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	c.cancels = append(c.cancels,
		c.platform.OnReady(func() { c.onReady(ctx) }),
		c.platform.OnAllWindowsClosed(func() { c.Shutdown(0) }),
		c.platform.OnQuit(func() { c.Shutdown(0) }),
	)
	c.mu.Unlock()
}

// CreateNewWindow handles the create-new-window action from window content.
// In-app window proliferation is disallowed: the URL opens in the OS browser.
func (c *Controller) CreateNewWindow(target string) {
	c.OpenExternal(target)
}

// OpenExternal handles the open-external action from window content.
func (c *Controller) OpenExternal(target string) {
	if err := c.platform.OpenExternal(target); err != nil {
		c.log.Warn("failed to open external url",
			zap.String("url", target), zap.Error(err))
	}
}

// Shutdown tears the application down exactly once and exits with code.
// It is triggered by the last window closing or by an explicit quit,
// whichever comes first.
func (c *Controller) Shutdown(code int) {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		c.state = StateShuttingDown
		cancels := c.cancels
		c.cancels = nil
		c.mu.Unlock()

		c.log.Info("shutting down", zap.Int("code", code))

		ctx := context.Background()
		for i := len(c.contributions) - 1; i >= 0; i-- {
			contrib := c.contributions[i]
			if err := contrib.Stop(ctx); err != nil {
				c.log.Warn("contribution stop failed",
					zap.String("name", contrib.Name()), zap.Error(err))
			}
		}

		c.windows.CloseAll()
		c.supervisor.Stop()

		for _, cancel := range cancels {
			cancel()
		}

		c.platform.Exit(code)
	})
}

// onReady runs once the platform event loop is up: placeholder menu, then
// contributions, then the hidden primary window, then the backend handshake.
func (c *Controller) onReady(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateBootstrapping {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// A minimal menu prevents accidental destructive actions from whatever
	// the toolkit installs by default.
	c.platform.SetApplicationMenu(placeholderMenu())

	for _, contrib := range c.contributions {
		if err := contrib.Start(ctx); err != nil {
			c.log.Error("contribution failed to start",
				zap.String("name", contrib.Name()), zap.Error(err))
		}
	}

	primary, err := c.windows.CreateWindow("")
	if err != nil {
		c.fatal(fmt.Errorf("failed to create primary window: %w", err))
		return
	}

	// The handshake can take a while; never block the platform callback.
	go func() {
		endpoint, err := c.supervisor.Start(ctx)
		if err != nil {
			c.fatal(err)
			return
		}

		c.mu.Lock()
		if c.state != StateBootstrapping {
			c.mu.Unlock()
			return
		}
		c.state = StateRunning
		c.mu.Unlock()

		target := contentURL(c.cfg.App.FrontendURL, endpoint.Port)
		if err := primary.LoadURL(target); err != nil {
			c.log.Error("primary window load failed",
				zap.String("url", target), zap.Error(err))
		}
	}()
}

// fatal logs the error and terminates the application with status 1. A
// failed backend start is unrecoverable for this run; no window load is
// attempted.
func (c *Controller) fatal(err error) {
	c.log.Error("fatal startup error", zap.Error(err))
	c.Shutdown(1)
}

func placeholderMenu() []MenuItem {
	return []MenuItem{
		{Label: "File", Role: "fileMenu"},
		{Label: "Quit", Role: "quit"},
	}
}

// contentURL appends the resolved backend endpoint to the frontend URL as a
// port query parameter.
func contentURL(base string, port int) string {
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Sprintf("%s?port=%d", base, port)
	}
	q := u.Query()
	q.Set("port", strconv.Itoa(port))
	u.RawQuery = q.Encode()
	return u.String()
}
