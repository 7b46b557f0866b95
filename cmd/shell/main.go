package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/land007/theia/internal/app"
	"github.com/land007/theia/internal/backend"
	"github.com/land007/theia/internal/config"
	"github.com/land007/theia/internal/ipc"
	"github.com/land007/theia/internal/keyboard"
	"github.com/land007/theia/internal/logging"
	"github.com/land007/theia/internal/monitoring"
	"github.com/land007/theia/internal/platform"
	"github.com/land007/theia/internal/store"
	"github.com/land007/theia/internal/window"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadOrDefault()

	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		log = logging.NewDefault()
	}
	defer log.Sync()

	metrics := monitoring.NewMetrics()

	// Headless toolkit adapters; a packaged build swaps these for
	// toolkit-backed implementations of the same interfaces.
	plat := platform.NewHeadless(log.Named("platform"))
	displays := platform.FixedDisplay{}
	layout := &platform.StaticLayout{
		Info:    map[string]interface{}{"name": "us"},
		Mapping: map[string]interface{}{},
	}

	st := store.NewFileStore(cfg.App.StateFile, log.Named("store"))

	windows := window.NewManager(
		&platform.Creator{Platform: plat, Log: log.Named("window")},
		displays,
		st,
		cfg.Window.SaveDelay,
		plat.OpenExternal,
		log.Named("window"),
	).WithMetrics(metrics)

	supervisor := backend.NewSupervisor(cfg.Backend, nil, log.Named("backend")).
		WithMetrics(metrics)

	controller := app.NewController(cfg, plat, supervisor, windows, log.Named("app"))

	bridge := ipc.NewServer(cfg.IPC, controller, log.Named("ipc"))
	relay := keyboard.NewRelay(layout, windows, bridge, log.Named("keyboard")).
		WithMetrics(metrics)
	controller.Register(bridge, relay)

	controller.Run(context.Background())

	// An OS signal counts as an explicit quit.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		controller.Shutdown(0)
	}()

	code := plat.Run()
	log.Info("exiting", zap.Int("code", code))
	os.Exit(code)
}
