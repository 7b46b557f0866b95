package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all shell configuration.
type Config struct {
	App     AppConfig
	Backend BackendConfig
	Window  WindowConfig
	IPC     IPCConfig
	Logging LogConfig
}

// AppConfig identifies the application and its on-disk state.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"theia"`
	FrontendURL string `envconfig:"FRONTEND_URL" default:"file://./lib/index.html"`
	StateFile   string `envconfig:"STATE_FILE" default:"shell-state.json"`
}

// BackendConfig controls how the backend worker is started.
type BackendConfig struct {
	// Mode selects how the backend runs: "child" forks a separate OS
	// process, "direct" invokes the injected entry point in-process.
	Mode             string        `envconfig:"BACKEND_MODE" default:"child"`
	Command          string        `envconfig:"BACKEND_CMD"`
	Args             []string      `envconfig:"BACKEND_ARGS"`
	HandshakeTimeout time.Duration `envconfig:"BACKEND_HANDSHAKE_TIMEOUT" default:"30s"`
}

// WindowConfig holds window lifecycle tuning.
type WindowConfig struct {
	// SaveDelay is the debounce interval for geometry persistence.
	SaveDelay time.Duration `envconfig:"WINDOW_SAVE_DELAY" default:"500ms"`
}

// IPCConfig holds the local content bridge address. Port 0 picks a free port.
type IPCConfig struct {
	Host string `envconfig:"IPC_HOST" default:"127.0.0.1"`
	Port int    `envconfig:"IPC_PORT" default:"0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "theia",
			FrontendURL: "file://./lib/index.html",
			StateFile:   "shell-state.json",
		},
		Backend: BackendConfig{
			Mode:             "child",
			HandshakeTimeout: 30 * time.Second,
		},
		Window: WindowConfig{
			SaveDelay: 500 * time.Millisecond,
		},
		IPC: IPCConfig{
			Host: "127.0.0.1",
			Port: 0,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
