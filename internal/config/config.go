// Package config loads the supervisor configuration with viper.
//
// Values come from, in increasing priority: defaults, the config file
// ($XDG_CONFIG_HOME/screensaver/config.yaml), and SCREENSAVER_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/MatthiasKunnen/screensaver/pkg/screensaver"
	"github.com/MatthiasKunnen/screensaver/pkg/supervisor"
	"github.com/spf13/viper"
)

// Event sources
const (
	SourceMonitor     = "monitor"
	SourceStdin       = "stdin"
	SourceScreenSaver = "screensaver"
	SourceLogind      = "logind"
	SourceIdle        = "idle"
)

// Readiness modes
const (
	ReadinessDelay = "delay"
	ReadinessPoll  = "poll"
)

// Config represents the complete supervisor configuration
type Config struct {
	// Port is the TCP port the file server binds and the browser targets
	Port int `mapstructure:"port"`
	// ContentDirectory is served as the screensaver content root
	ContentDirectory string `mapstructure:"content_directory"`
	// Source selects where lock events come from
	// Options: "monitor", "stdin", "screensaver", "logind", "idle"
	Source    string          `mapstructure:"source"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Server    ServerConfig    `mapstructure:"server"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
	Idle      IdleConfig      `mapstructure:"idle"`
	Logind    LogindConfig    `mapstructure:"logind"`
	Inhibit   InhibitConfig   `mapstructure:"inhibit"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// MonitorConfig controls the dbus-monitor source
type MonitorConfig struct {
	// Command prints one notification line at a time on stdout
	Command []string `mapstructure:"command"`
}

// ServerConfig controls the static file server
type ServerConfig struct {
	// Command is the server invocation; {port} and {dir} are substituted
	Command []string `mapstructure:"command"`
}

// BrowserConfig controls the kiosk browser
type BrowserConfig struct {
	// Command is the browser executable
	Command string `mapstructure:"command"`
	// Page is opened relative to the server root (default: "index.html")
	Page string `mapstructure:"page"`
	// ExtraArgs are appended to the kiosk flags
	ExtraArgs []string `mapstructure:"extra_args"`
}

// ReadinessConfig controls how long the browser waits for the server
type ReadinessConfig struct {
	// Mode is "delay" for a fixed wait or "poll" to dial the port until it answers
	Mode string `mapstructure:"mode"`
	// Delay is the fixed wait in delay mode
	Delay time.Duration `mapstructure:"delay"`
	// Interval is the time between dials in poll mode
	Interval time.Duration `mapstructure:"interval"`
	// Timeout bounds the wait in poll mode
	Timeout time.Duration `mapstructure:"timeout"`
}

// IdleConfig controls the Wayland idle source
type IdleConfig struct {
	// Timeout is how long the seat must be idle before the screensaver starts
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogindConfig controls the logind source
type LogindConfig struct {
	// SessionID defaults to $XDG_SESSION_ID
	SessionID string `mapstructure:"session_id"`
}

// InhibitConfig controls the shutdown inhibitor
type InhibitConfig struct {
	// Shutdown delays shutdown until the screensaver has been torn down (default: true)
	Shutdown bool `mapstructure:"shutdown"`
}

// SecretsConfig controls Secret Service integration
type SecretsConfig struct {
	// LockCollections are locked every time the screensaver starts,
	// e.g. "collection/login" or "aliases/default"
	LockCollections []string `mapstructure:"lock_collections"`
}

// LoggingConfig controls logging
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// File receives the log instead of stderr when set
	File string `mapstructure:"file"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Port:             8080,
		ContentDirectory: DataDir(),
		Source:           SourceMonitor,
		Monitor: MonitorConfig{
			Command: slices.Clone(screensaver.MonitorCommand),
		},
		Server: ServerConfig{
			Command: slices.Clone(supervisor.DefaultServerCommand),
		},
		Browser: BrowserConfig{
			Command:   "chromium-browser",
			Page:      "index.html",
			ExtraArgs: []string{},
		},
		Readiness: ReadinessConfig{
			Mode:     ReadinessDelay,
			Delay:    time.Second,
			Interval: 100 * time.Millisecond,
			Timeout:  5 * time.Second,
		},
		Idle: IdleConfig{
			Timeout: 5 * time.Minute,
		},
		Logind: LogindConfig{
			SessionID: os.Getenv("XDG_SESSION_ID"),
		},
		Inhibit: InhibitConfig{
			Shutdown: true,
		},
		Secrets: SecretsConfig{
			LockCollections: []string{},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers the defaults with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("port", defaults.Port)
	viper.SetDefault("content_directory", defaults.ContentDirectory)
	viper.SetDefault("source", defaults.Source)

	viper.SetDefault("monitor.command", defaults.Monitor.Command)
	viper.SetDefault("server.command", defaults.Server.Command)

	viper.SetDefault("browser.command", defaults.Browser.Command)
	viper.SetDefault("browser.page", defaults.Browser.Page)
	viper.SetDefault("browser.extra_args", defaults.Browser.ExtraArgs)

	viper.SetDefault("readiness.mode", defaults.Readiness.Mode)
	viper.SetDefault("readiness.delay", defaults.Readiness.Delay)
	viper.SetDefault("readiness.interval", defaults.Readiness.Interval)
	viper.SetDefault("readiness.timeout", defaults.Readiness.Timeout)

	viper.SetDefault("idle.timeout", defaults.Idle.Timeout)
	viper.SetDefault("logind.session_id", defaults.Logind.SessionID)
	viper.SetDefault("inhibit.shutdown", defaults.Inhibit.Shutdown)
	viper.SetDefault("secrets.lock_collections", defaults.Secrets.LockCollections)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
}

// Load unmarshals and validates the configuration held by viper
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the directory holding config.yaml
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "screensaver")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".screensaver"
	}
	return filepath.Join(home, ".config", "screensaver")
}

// DataDir returns the default content directory
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "screensaver")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "screensaver"
	}
	return filepath.Join(home, ".local", "share", "screensaver")
}
