package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ConnectorType identifies which simulator bridge backend should be used.
type ConnectorType string

const (
	ConnectorIP     ConnectorType = "ip"
	ConnectorSerial ConnectorType = "serial"
	ConnectorDummy  ConnectorType = "dummy"

	DefaultIPPort           = 51968
	DefaultSerialBaud       = 115200
	DefaultUpdateRateMs     = 500
	DefaultReconnectRateSec = 10
	DefaultSearchRadiusKm   = 200
	DefaultReplaySpeed      = 1.0
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

var validate = validator.New()

// LoggingConfig defines runtime logging behavior. Format applies to both the
// console and the log file.
type LoggingConfig struct {
	Level     string `json:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format    string `json:"format" validate:"omitempty,oneof=text json"`
	LogToFile bool   `json:"log_to_file"`
}

// ConnectionConfig contains connector-specific connection parameters.
type ConnectionConfig struct {
	Connector  ConnectorType `json:"connector" validate:"oneof=ip serial dummy"`
	Host       string        `json:"host"`
	Port       int           `json:"port" validate:"gte=0,lte=65535"`
	SerialPort string        `json:"serial_port"`
	SerialBaud int           `json:"serial_baud" validate:"gte=0"`
}

// AcquisitionConfig tunes the background acquisition worker.
type AcquisitionConfig struct {
	UpdateRateMs     int     `json:"update_rate_ms" validate:"gte=10,lte=60000"`
	ReconnectRateSec int     `json:"reconnect_rate_sec" validate:"gte=1,lte=3600"`
	SearchRadiusKm   int     `json:"search_radius_km" validate:"gte=1,lte=2000"`
	RecordPath       string  `json:"record_path"`
	ReplayPath       string  `json:"replay_path"`
	ReplaySpeed      float64 `json:"replay_speed" validate:"gt=0,lte=64"`
	Verbose          bool    `json:"verbose"`
}

func (c AcquisitionConfig) UpdateRate() time.Duration {
	return time.Duration(c.UpdateRateMs) * time.Millisecond
}

func (c AcquisitionConfig) ReconnectRate() time.Duration {
	return time.Duration(c.ReconnectRateSec) * time.Second
}

// NotificationConfig stores desktop notification preferences.
type NotificationConfig struct {
	Enabled bool                     `json:"enabled"`
	Events  NotificationEventsConfig `json:"events"`
}

// NotificationEventsConfig stores per-event notification toggles.
type NotificationEventsConfig struct {
	ConnectionStatus bool `json:"connection_status"`
	Errors           bool `json:"errors"`
}

// AutostartConfig controls login registration of the daemon.
type AutostartConfig struct {
	Enabled bool `json:"enabled"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection    ConnectionConfig   `json:"connection"`
	Acquisition   AcquisitionConfig  `json:"acquisition"`
	Logging       LoggingConfig      `json:"logging"`
	Notifications NotificationConfig `json:"notifications"`
	Autostart     AutostartConfig    `json:"autostart"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Connector:  ConnectorIP,
			Host:       "127.0.0.1",
			Port:       DefaultIPPort,
			SerialPort: "",
			SerialBaud: DefaultSerialBaud,
		},
		Acquisition: AcquisitionConfig{
			UpdateRateMs:     DefaultUpdateRateMs,
			ReconnectRateSec: DefaultReconnectRateSec,
			SearchRadiusKm:   DefaultSearchRadiusKm,
			ReplaySpeed:      DefaultReplaySpeed,
		},
		Logging: LoggingConfig{
			Level:     DefaultLogLevel,
			Format:    DefaultLogFormat,
			LogToFile: false,
		},
		Notifications: NotificationConfig{
			Enabled: false,
			Events: NotificationEventsConfig{
				ConnectionStatus: true,
				Errors:           true,
			},
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if c.Connection.Connector == "" {
		c.Connection.Connector = ConnectorIP
	}
	if c.Connection.Port <= 0 {
		c.Connection.Port = DefaultIPPort
	}
	if c.Connection.SerialBaud <= 0 {
		c.Connection.SerialBaud = DefaultSerialBaud
	}
	if c.Acquisition.UpdateRateMs <= 0 {
		c.Acquisition.UpdateRateMs = DefaultUpdateRateMs
	}
	if c.Acquisition.ReconnectRateSec <= 0 {
		c.Acquisition.ReconnectRateSec = DefaultReconnectRateSec
	}
	if c.Acquisition.SearchRadiusKm <= 0 {
		c.Acquisition.SearchRadiusKm = DefaultSearchRadiusKm
	}
	if c.Acquisition.ReplaySpeed <= 0 {
		c.Acquisition.ReplaySpeed = DefaultReplaySpeed
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	c.Connection.Host = strings.TrimSpace(c.Connection.Host)
	c.Acquisition.RecordPath = strings.TrimSpace(c.Acquisition.RecordPath)
	c.Acquisition.ReplayPath = strings.TrimSpace(c.Acquisition.ReplayPath)
}

func (c AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Connection.Connector {
	case ConnectorIP:
		if strings.TrimSpace(c.Connection.Host) == "" {
			return errors.New("ip host is required")
		}
	case ConnectorSerial:
		if strings.TrimSpace(c.Connection.SerialPort) == "" {
			return errors.New("serial port is required")
		}
		if c.Connection.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	case ConnectorDummy:
	default:
		return fmt.Errorf("unknown connector: %s", c.Connection.Connector)
	}

	if c.Acquisition.RecordPath != "" && c.Acquisition.RecordPath == c.Acquisition.ReplayPath {
		return errors.New("record and replay paths must differ")
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
