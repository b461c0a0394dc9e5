package app

import (
	"net"
	"strconv"
	"strings"

	"github.com/skobkin/simlink/internal/config"
	"github.com/skobkin/simlink/internal/connectors"
)

func SourceNameFromConnector(connector config.ConnectorType) string {
	switch connector {
	case config.ConnectorIP:
		return "ip"
	case config.ConnectorSerial:
		return "serial"
	case config.ConnectorDummy:
		return "dummy"
	default:
		if value := strings.TrimSpace(string(connector)); value != "" {
			return value
		}

		return "unknown"
	}
}

// ConnectionTarget renders where the bridge is expected: host:port for ip,
// port@baud for serial and nothing for the dummy connector.
func ConnectionTarget(cfg config.ConnectionConfig) string {
	switch cfg.Connector {
	case config.ConnectorIP:
		host := strings.TrimSpace(cfg.Host)
		if host == "" {
			return ""
		}
		port := cfg.Port
		if port == 0 {
			port = config.DefaultIPPort
		}

		return net.JoinHostPort(host, strconv.Itoa(port))
	case config.ConnectorSerial:
		port := strings.TrimSpace(cfg.SerialPort)
		if port == "" {
			return ""
		}
		if cfg.SerialBaud > 0 {
			return port + "@" + strconv.Itoa(cfg.SerialBaud)
		}

		return port
	default:
		return ""
	}
}

// SimSupportAvailable reports whether the configured connector can ever reach
// a simulator. The dummy connector never does.
func SimSupportAvailable(cfg config.ConnectionConfig) bool {
	switch cfg.Connector {
	case config.ConnectorIP:
		return strings.TrimSpace(cfg.Host) != ""
	case config.ConnectorSerial:
		return strings.TrimSpace(cfg.SerialPort) != ""
	default:
		return false
	}
}

// ConnectionStatusFromConfig is the status shown before the worker reports anything.
func ConnectionStatusFromConfig(cfg config.AppConfig) connectors.ConnectionStatus {
	status := connectors.ConnectionStatus{
		State:  connectors.ConnectionStateDisconnected,
		Source: SourceNameFromConnector(cfg.Connection.Connector),
		Target: ConnectionTarget(cfg.Connection),
	}
	if replayPath := strings.TrimSpace(cfg.Acquisition.ReplayPath); replayPath != "" {
		status.Source = "replay"
		status.Target = replayPath
	}

	return status
}
