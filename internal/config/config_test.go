package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAppConfigFillMissingDefaults(t *testing.T) {
	cfg := AppConfig{}
	cfg.FillMissingDefaults()

	if cfg.Connection.Connector != ConnectorIP {
		t.Fatalf("expected default connector %q, got %q", ConnectorIP, cfg.Connection.Connector)
	}
	if cfg.Connection.Port != DefaultIPPort {
		t.Fatalf("expected default port %d, got %d", DefaultIPPort, cfg.Connection.Port)
	}
	if cfg.Connection.SerialBaud != DefaultSerialBaud {
		t.Fatalf("expected default serial baud %d, got %d", DefaultSerialBaud, cfg.Connection.SerialBaud)
	}
	if cfg.Acquisition.UpdateRate() != 500*time.Millisecond {
		t.Fatalf("expected default update rate 500ms, got %s", cfg.Acquisition.UpdateRate())
	}
	if cfg.Acquisition.ReconnectRate() != 10*time.Second {
		t.Fatalf("expected default reconnect rate 10s, got %s", cfg.Acquisition.ReconnectRate())
	}
	if cfg.Acquisition.SearchRadiusKm != DefaultSearchRadiusKm {
		t.Fatalf("expected default radius %d, got %d", DefaultSearchRadiusKm, cfg.Acquisition.SearchRadiusKm)
	}
	if cfg.Acquisition.ReplaySpeed != DefaultReplaySpeed {
		t.Fatalf("expected default replay speed 1, got %v", cfg.Acquisition.ReplaySpeed)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Logging.Level)
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate: %v", err)
	}
	if cfg.Notifications.Enabled {
		t.Fatalf("expected notifications to be disabled by default")
	}
	if !cfg.Notifications.Events.ConnectionStatus || !cfg.Notifications.Events.Errors {
		t.Fatalf("expected notification events enabled by default, got %+v", cfg.Notifications.Events)
	}
	if cfg.Autostart.Enabled {
		t.Fatalf("expected autostart to be disabled by default")
	}
}

func TestLoadMissingSectionsUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
  "connection": {
    "connector": "ip",
    "host": "192.168.0.10"
  },
  "logging": {
    "level": "debug"
  }
}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Connection.Host != "192.168.0.10" || cfg.Connection.Port != DefaultIPPort {
		t.Fatalf("unexpected connection %+v", cfg.Connection)
	}
	if cfg.Acquisition.UpdateRateMs != DefaultUpdateRateMs || cfg.Acquisition.SearchRadiusKm != DefaultSearchRadiusKm {
		t.Fatalf("expected acquisition defaults, got %+v", cfg.Acquisition)
	}
	if !cfg.Notifications.Events.ConnectionStatus {
		t.Fatalf("expected notification defaults to survive partial config")
	}
}

func TestLoadPreservesExplicitValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
  "connection": {"connector": "serial", "serial_port": "/dev/ttyUSB0", "serial_baud": 57600},
  "acquisition": {
    "update_rate_ms": 250,
    "reconnect_rate_sec": 3,
    "search_radius_km": 80,
    "record_path": " /tmp/out.slr ",
    "replay_speed": 2.5,
    "verbose": true
  },
  "notifications": {"enabled": true, "events": {"connection_status": false, "errors": true}}
}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Connection.Connector != ConnectorSerial || cfg.Connection.SerialBaud != 57600 {
		t.Fatalf("unexpected connection %+v", cfg.Connection)
	}
	a := cfg.Acquisition
	if a.UpdateRateMs != 250 || a.ReconnectRateSec != 3 || a.SearchRadiusKm != 80 || a.ReplaySpeed != 2.5 || !a.Verbose {
		t.Fatalf("unexpected acquisition %+v", a)
	}
	if a.RecordPath != "/tmp/out.slr" {
		t.Fatalf("expected trimmed record path, got %q", a.RecordPath)
	}
	if !cfg.Notifications.Enabled || cfg.Notifications.Events.ConnectionStatus {
		t.Fatalf("expected explicit notification values preserved, got %+v", cfg.Notifications)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected loaded config to validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults for missing file")
	}
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "default ok", mutate: func(*AppConfig) {}},
		{name: "dummy needs nothing", mutate: func(c *AppConfig) {
			c.Connection.Connector = ConnectorDummy
			c.Connection.Host = ""
		}},
		{name: "ip without host", mutate: func(c *AppConfig) { c.Connection.Host = " " }, wantErr: "ip host is required"},
		{name: "serial without port", mutate: func(c *AppConfig) { c.Connection.Connector = ConnectorSerial }, wantErr: "serial port is required"},
		{name: "unknown connector", mutate: func(c *AppConfig) { c.Connection.Connector = "bluetooth" }, wantErr: "invalid config"},
		{name: "update rate too small", mutate: func(c *AppConfig) { c.Acquisition.UpdateRateMs = 1 }, wantErr: "UpdateRateMs"},
		{name: "reconnect rate zero", mutate: func(c *AppConfig) { c.Acquisition.ReconnectRateSec = 0 }, wantErr: "ReconnectRateSec"},
		{name: "replay speed zero", mutate: func(c *AppConfig) { c.Acquisition.ReplaySpeed = 0 }, wantErr: "ReplaySpeed"},
		{name: "bad log level", mutate: func(c *AppConfig) { c.Logging.Level = "verbose" }, wantErr: "Level"},
		{name: "bad log format", mutate: func(c *AppConfig) { c.Logging.Format = "xml" }, wantErr: "Format"},
		{name: "port out of range", mutate: func(c *AppConfig) { c.Connection.Port = 70000 }, wantErr: "Port"},
		{name: "record equals replay", mutate: func(c *AppConfig) {
			c.Acquisition.RecordPath = "/tmp/a.slr"
			c.Acquisition.ReplayPath = "/tmp/a.slr"
		}, wantErr: "must differ"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}

				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Acquisition.ReplayPath = "/data/flight.slr"
	cfg.Notifications.Enabled = true

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away, stat err=%v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load saved config: %v", err)
	}
	if loaded != cfg {
		t.Fatalf("expected saved config to round trip:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Connection.Connector = "carrier-pigeon"

	if err := Save(path, cfg); err == nil {
		t.Fatalf("expected save to fail validation")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file written for invalid config")
	}
}
