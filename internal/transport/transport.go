package transport

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by frame I/O before Connect or after Close.
var ErrNotConnected = errors.New("transport is not connected")

// Transport moves enveloped payloads between simlink and a simulator bridge.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, payload []byte) error
}

// StatusTargetResolver is implemented by transports that can describe where
// they connect, e.g. "host:port" or "port@baud".
type StatusTargetResolver interface {
	StatusTarget() string
}
