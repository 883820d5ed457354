package config

import (
	"errors"
	"fmt"
	"time"
)

// Journal backends selectable via store.backend.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	Store             StoreConfig   `mapstructure:"store" yaml:"store"`
	Session           SessionConfig `mapstructure:"session" yaml:"session"`
}

// StoreConfig selects and locates the message journal backend. Path is a
// database file for sqlite and a directory for badger.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// SessionConfig tunes per-connection behavior.
type SessionConfig struct {
	QueueSize         int   `mapstructure:"queue_size" yaml:"queue_size"`
	MaxMessageBytes   int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	FatalSubmitErrors bool  `mapstructure:"fatal_submit_errors" yaml:"fatal_submit_errors"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    "roomcast.db",
		},
		Session: SessionConfig{
			QueueSize:       64,
			MaxMessageBytes: 1 << 20,
		},
	}
}

// Validate rejects configurations the server cannot run with. Called after
// flag overrides are applied, so it sees the final values.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Path == "" {
		return errors.New("store path required")
	}
	if c.Session.QueueSize <= 0 {
		return errors.New("session queue size must be positive")
	}
	return nil
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Session.QueueSize != 0 {
		c.Session.QueueSize = other.Session.QueueSize
	}
	if other.Session.MaxMessageBytes != 0 {
		c.Session.MaxMessageBytes = other.Session.MaxMessageBytes
	}
	if other.Session.FatalSubmitErrors {
		c.Session.FatalSubmitErrors = true
	}
}
