// Package keyboard relays platform keyboard-layout changes to live windows.
package keyboard

import (
	"context"
	"fmt"

	"github.com/land007/theia/internal/logging"
	"github.com/land007/theia/internal/monitoring"
	"go.uber.org/zap"
)

// Layout is the descriptor pushed to window content on every change.
type Layout struct {
	Info    interface{} `json:"info"`
	Mapping interface{} `json:"mapping"`
}

// EventName is the outbound notification window content listens for.
const EventName = "keyboardLayoutChanged"

// Source exposes the platform keyboard layout. OnChange returns a cancel
// func releasing the subscription.
type Source interface {
	Current() (info, mapping interface{}, err error)
	OnChange(fn func()) (cancel func())
}

// Dispatcher fans an event out to live windows, skipping destroyed ones.
type Dispatcher interface {
	Dispatch(event string, payload interface{}) int
}

// Notifier is an optional extra sink for layout events, e.g. the IPC bridge.
type Notifier interface {
	Broadcast(event string, payload interface{})
}

// Relay subscribes once to layout-change notifications and forwards a layout
// descriptor to every live window.
type Relay struct {
	source   Source
	windows  Dispatcher
	notifier Notifier
	log      *logging.Logger
	metrics  *monitoring.Metrics
	cancel   func()
}

// NewRelay creates a relay. notifier may be nil.
func NewRelay(source Source, windows Dispatcher, notifier Notifier, log *logging.Logger) *Relay {
	return &Relay{
		source:   source,
		windows:  windows,
		notifier: notifier,
		log:      log,
	}
}

// WithMetrics adds metrics tracking to the relay.
func (r *Relay) WithMetrics(metrics *monitoring.Metrics) *Relay {
	r.metrics = metrics
	return r
}

// Name implements app.Contribution.
func (r *Relay) Name() string { return "keyboard-layout-relay" }

// Start subscribes to the layout source.
func (r *Relay) Start(ctx context.Context) error {
	if r.cancel != nil {
		return fmt.Errorf("keyboard relay already started")
	}
	r.cancel = r.source.OnChange(r.broadcast)
	return nil
}

// Stop releases the layout subscription.
func (r *Relay) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	return nil
}

func (r *Relay) broadcast() {
	info, mapping, err := r.source.Current()
	if err != nil {
		// Recoverable: skip this notification, the next one may succeed.
		r.log.Warn("keyboard layout unavailable", zap.Error(err))
		return
	}

	layout := Layout{Info: info, Mapping: mapping}
	delivered := r.windows.Dispatch(EventName, layout)
	if r.notifier != nil {
		r.notifier.Broadcast(EventName, layout)
	}
	if r.metrics != nil {
		r.metrics.LayoutEventsRelayed.Inc()
	}
	r.log.Debug("keyboard layout relayed", zap.Int("windows", delivered))
}
