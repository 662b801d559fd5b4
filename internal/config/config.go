// Package config provides configuration management for the chime server.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root server configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	SQLite  SQLiteConfig  `koanf:"sqlite"`
	Alarm   AlarmConfig   `koanf:"alarm"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	ListenAddr        string        `koanf:"listen_addr"`
	HTTPServerTimeout time.Duration `koanf:"http_server_timeout"`
}

// SQLiteConfig holds database settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// AlarmConfig holds alarm scheduling behavior.
type AlarmConfig struct {
	// SnoozeDuration is how far in the future a snooze timer is armed.
	SnoozeDuration time.Duration `koanf:"snooze_duration"`
	// OccurrenceScanDays bounds the day-by-day scan for the next matching
	// repeat weekday. A full week always contains a match for a non-empty
	// set, so values above 7 only widen the invariant-violation fallback.
	OccurrenceScanDays int `koanf:"occurrence_scan_days"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `koanf:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:        ":8125",
			HTTPServerTimeout: 30 * time.Second,
		},
		SQLite: SQLiteConfig{
			Path: "chime.db",
		},
		Alarm: AlarmConfig{
			SnoozeDuration:     5 * time.Minute,
			OccurrenceScanDays: 7,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from an optional TOML file and CHIME_*
// environment variables, layered over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// CHIME_SERVER_LISTEN_ADDR -> server.listen_addr
	if err := k.Load(env.Provider("CHIME_", ".", func(s string) string {
		return envToKey(strings.TrimPrefix(s, "CHIME_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Alarm.SnoozeDuration <= 0 {
		return nil, fmt.Errorf("alarm.snooze_duration must be positive")
	}
	if cfg.Alarm.OccurrenceScanDays < 7 {
		cfg.Alarm.OccurrenceScanDays = 7
	}
	return cfg, nil
}

// envToKey maps SECTION_SOME_KEY onto section.some_key. The first
// underscore separates the section; the rest of the name keeps its
// underscores.
func envToKey(s string) string {
	s = strings.ToLower(s)
	section, rest, found := strings.Cut(s, "_")
	if !found {
		return section
	}
	return section + "." + rest
}
