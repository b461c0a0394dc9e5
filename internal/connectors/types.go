package connectors

import (
	"time"

	"github.com/skobkin/simlink/internal/domain"
)

// ConnectionState describes the acquisition link lifecycle.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateReconnecting ConnectionState = "reconnecting"
	ConnectionStateConnected    ConnectionState = "connected"
)

// ConnectionStatus is a bus event snapshot of the current link status.
type ConnectionStatus struct {
	State     ConnectionState
	Err       string
	Source    string
	Target    string
	Timestamp time.Time
}

// StatusMessage is a user-facing log line produced by the acquisition worker.
type StatusMessage struct {
	Text      string
	IsError   bool
	Timestamp time.Time
}

// ReplaySessionEvent is published when a record or replay session opens and closes.
type ReplaySessionEvent struct {
	Session domain.ReplaySession
	Closed  bool
}
