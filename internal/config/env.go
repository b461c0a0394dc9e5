package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "SIMLINK_"

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left alone. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	return nil
}

// ApplyEnv overrides cfg with SIMLINK_* variables from the environment.
func (c *AppConfig) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *AppConfig) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)

		return v, v != ""
	}
	var errs []error
	setInt := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))

				return
			}
			*dst = n
		}
	}
	setString := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	if v, ok := get("CONNECTOR"); ok {
		c.Connection.Connector = ConnectorType(strings.ToLower(v))
	}
	setString("HOST", &c.Connection.Host)
	setInt("PORT", &c.Connection.Port)
	setString("SERIAL_PORT", &c.Connection.SerialPort)
	setInt("SERIAL_BAUD", &c.Connection.SerialBaud)
	setInt("UPDATE_RATE_MS", &c.Acquisition.UpdateRateMs)
	setInt("RECONNECT_RATE_SEC", &c.Acquisition.ReconnectRateSec)
	setInt("SEARCH_RADIUS_KM", &c.Acquisition.SearchRadiusKm)
	setString("RECORD_PATH", &c.Acquisition.RecordPath)
	setString("REPLAY_PATH", &c.Acquisition.ReplayPath)
	if v, ok := get("REPLAY_SPEED"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREPLAY_SPEED: %w", EnvPrefix, err))
		} else {
			c.Acquisition.ReplaySpeed = f
		}
	}
	if v, ok := get("VERBOSE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sVERBOSE: %w", EnvPrefix, err))
		} else {
			c.Acquisition.Verbose = b
		}
	}
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FORMAT", &c.Logging.Format)

	return errors.Join(errs...)
}
