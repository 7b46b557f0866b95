package window

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/land007/theia/internal/display"
	"github.com/land007/theia/internal/logging"
	"github.com/land007/theia/internal/monitoring"
	"github.com/land007/theia/internal/store"
	"go.uber.org/zap"
)

// Manager orchestrates window lifecycle: creation, geometry restore,
// debounced persistence and event dispatch.
type Manager struct {
	creator      Creator
	displays     display.Source
	store        store.Store
	saveDelay    time.Duration
	openExternal func(url string) error
	log          *logging.Logger
	metrics      *monitoring.Metrics

	mu      sync.RWMutex
	records map[string]*Record
}

// NewManager creates a window manager. openExternal receives URLs that window
// content asked to open in a new window; they are redirected to the OS
// default handler instead of spawning more in-app windows.
func NewManager(creator Creator, displays display.Source, st store.Store, saveDelay time.Duration, openExternal func(url string) error, log *logging.Logger) *Manager {
	return &Manager{
		creator:      creator,
		displays:     displays,
		store:        st,
		saveDelay:    saveDelay,
		openExternal: openExternal,
		log:          log,
		records:      make(map[string]*Record),
	}
}

// WithMetrics adds metrics tracking to the manager.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// CreateWindow creates a new window at its restored position, or at the
// default two-thirds centered placement on the display nearest the cursor
// when no state was persisted. The window starts hidden and is shown once
// its content signals ready-to-show.
func (m *Manager) CreateWindow(initialURL string) (*Record, error) {
	disp := m.displays.DisplayNearestCursor()
	def := FromRect(display.DefaultBounds(disp), false)

	snap := def
	if !m.store.Get(StateKey, &snap) {
		snap = def
	}

	win, err := m.creator.Create(snap.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	rec := &Record{
		id:       uuid.New().String(),
		win:      win,
		stateKey: StateKey,
	}
	rec.restored = snap
	rec.restored.IsMaximized = false

	if snap.IsMaximized {
		win.Maximize()
	}

	m.subscribe(rec)

	m.mu.Lock()
	m.records[rec.id] = rec
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.WindowsOpen.Inc()
	}
	m.log.Debug("window created",
		zap.String("window", rec.id),
		zap.Int("width", snap.Width), zap.Int("height", snap.Height),
		zap.Bool("maximized", snap.IsMaximized))

	if initialURL != "" {
		if err := win.LoadURL(initialURL); err != nil {
			m.log.Error("initial content load failed",
				zap.String("url", initialURL), zap.Error(err))
		}
	}

	return rec, nil
}

// CloseAll destroys every live window on application teardown. Each window
// flushes its geometry through the close path and releases its event
// subscriptions before the toolkit window is destroyed.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	recs := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, rec)
	}
	m.mu.RUnlock()

	for _, rec := range recs {
		m.closeWindow(rec)
		rec.win.Destroy()
	}
}

// Count returns the number of live windows.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Dispatch sends an event to every live window. Records destroyed between
// the caller's snapshot and delivery are skipped, not an error. Returns the
// number of windows reached.
func (m *Manager) Dispatch(event string, payload interface{}) int {
	m.mu.RLock()
	recs := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, rec)
	}
	m.mu.RUnlock()

	delivered := 0
	for _, rec := range recs {
		if rec.Destroyed() {
			continue
		}
		if err := rec.Send(event, payload); err != nil {
			m.log.Warn("event not delivered",
				zap.String("event", event),
				zap.String("window", rec.id), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

func (m *Manager) subscribe(rec *Record) {
	win := rec.win
	rec.cancels = append(rec.cancels,
		win.OnReadyToShow(win.Show),
		win.OnResize(func() { m.scheduleSave(rec) }),
		win.OnMove(func() { m.scheduleSave(rec) }),
		win.OnMaximize(func() { m.scheduleSave(rec) }),
		win.OnUnmaximize(func() { m.scheduleSave(rec) }),
		win.OnClose(func() { m.closeWindow(rec) }),
		win.OnNewWindowRequest(func(url string) {
			// One in-app window only; everything else goes to the OS browser.
			if err := m.openExternal(url); err != nil {
				m.log.Warn("failed to open external url",
					zap.String("url", url), zap.Error(err))
			}
		}),
	)
}

// scheduleSave captures the current geometry and schedules a debounced
// persist. Each window has a single save slot: rescheduling supersedes any
// pending save, so a burst of move/resize events produces one write.
func (m *Manager) scheduleSave(rec *Record) {
	rec.mu.Lock()
	if rec.destroyed {
		rec.mu.Unlock()
		return
	}
	snap := rec.captureLocked()
	if rec.saveTimer != nil {
		rec.saveTimer.Stop()
	}
	rec.saveTimer = time.AfterFunc(m.saveDelay, func() {
		m.persistLive(rec, snap)
	})
	rec.mu.Unlock()
}

// persistLive writes a debounced snapshot. The write happens under rec.mu and
// is dropped once the record is destroyed, so a save that is already firing
// can never land after the close flush.
func (m *Manager) persistLive(rec *Record, snap Snapshot) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.destroyed {
		return
	}
	m.persistLocked(rec, snap)
}

// persistLocked writes a snapshot to the store; rec.mu must be held.
// Failures are logged and otherwise ignored; the window keeps running
// without durable state for this cycle.
func (m *Manager) persistLocked(rec *Record, snap Snapshot) {
	if err := m.store.Set(rec.stateKey, snap); err != nil {
		if m.metrics != nil {
			m.metrics.GeometryWriteFailures.Inc()
		}
		m.log.Warn("window state not persisted",
			zap.String("window", rec.id), zap.Error(err))
		return
	}
	if m.metrics != nil {
		m.metrics.GeometryWrites.Inc()
	}
}

// closeWindow flushes geometry synchronously and retires the record. Close is
// the one persistence path with no debounce: after this the window is gone.
// The flush shares rec.mu with persistLive, making it the final write.
func (m *Manager) closeWindow(rec *Record) {
	rec.mu.Lock()
	if rec.destroyed {
		rec.mu.Unlock()
		return
	}
	snap := rec.captureLocked()
	rec.destroyed = true
	if rec.saveTimer != nil {
		rec.saveTimer.Stop()
		rec.saveTimer = nil
	}
	cancels := rec.cancels
	rec.cancels = nil
	m.persistLocked(rec, snap)
	rec.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	m.mu.Lock()
	delete(m.records, rec.id)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.WindowsOpen.Dec()
	}
	m.log.Debug("window closed", zap.String("window", rec.id))
}
