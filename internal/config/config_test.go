package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Server.ListenAddr != ":8125" {
		t.Errorf("listen_addr = %q, want :8125", cfg.Server.ListenAddr)
	}
	if cfg.SQLite.Path != "chime.db" {
		t.Errorf("sqlite path = %q, want chime.db", cfg.SQLite.Path)
	}
	if cfg.Alarm.SnoozeDuration != 5*time.Minute {
		t.Errorf("snooze_duration = %v, want 5m", cfg.Alarm.SnoozeDuration)
	}
	if cfg.Alarm.OccurrenceScanDays != 7 {
		t.Errorf("occurrence_scan_days = %d, want 7", cfg.Alarm.OccurrenceScanDays)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
listen_addr = ":9000"

[alarm]
snooze_duration = "10m"

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("listen_addr = %q, want :9000", cfg.Server.ListenAddr)
	}
	if cfg.Alarm.SnoozeDuration != 10*time.Minute {
		t.Errorf("snooze_duration = %v, want 10m", cfg.Alarm.SnoozeDuration)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.SQLite.Path != "chime.db" {
		t.Errorf("sqlite path = %q, want default", cfg.SQLite.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load() with missing file did not error")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CHIME_SERVER_LISTEN_ADDR", ":7777")
	t.Setenv("CHIME_SQLITE_PATH", "/tmp/other.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Server.ListenAddr != ":7777" {
		t.Errorf("listen_addr = %q, want :7777", cfg.Server.ListenAddr)
	}
	if cfg.SQLite.Path != "/tmp/other.db" {
		t.Errorf("sqlite path = %q, want /tmp/other.db", cfg.SQLite.Path)
	}
}

func TestScanDaysClamped(t *testing.T) {
	t.Setenv("CHIME_ALARM_OCCURRENCE_SCAN_DAYS", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Alarm.OccurrenceScanDays != 7 {
		t.Errorf("occurrence_scan_days = %d, want clamped to 7", cfg.Alarm.OccurrenceScanDays)
	}
}

func TestEnvToKey(t *testing.T) {
	cases := map[string]string{
		"SERVER_LISTEN_ADDR":         "server.listen_addr",
		"SQLITE_PATH":                "sqlite.path",
		"ALARM_SNOOZE_DURATION":      "alarm.snooze_duration",
		"ALARM_OCCURRENCE_SCAN_DAYS": "alarm.occurrence_scan_days",
		"LOGGING_LEVEL":              "logging.level",
		"DEBUG":                      "debug",
	}
	for in, want := range cases {
		if got := envToKey(in); got != want {
			t.Errorf("envToKey(%q) = %q, want %q", in, got, want)
		}
	}
}
