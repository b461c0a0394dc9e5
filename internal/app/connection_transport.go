package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/skobkin/simlink/internal/acquisition"
	"github.com/skobkin/simlink/internal/config"
	"github.com/skobkin/simlink/internal/simbridge"
	"github.com/skobkin/simlink/internal/transport"
)

var errTransportNotConfigured = errors.New("transport is not configured")

// SwitchableTransport is the transport handed to the bridge adapter. Apply
// swaps the connection underneath when settings change; the dummy connector
// leaves it empty.
type SwitchableTransport struct {
	mu  sync.RWMutex
	cfg config.ConnectionConfig
	tr  transport.Transport
}

func NewConnectionTransport(cfg config.ConnectionConfig) (*SwitchableTransport, error) {
	t := &SwitchableTransport{}
	if err := t.Apply(cfg); err != nil {
		return nil, err
	}

	return t, nil
}

// Apply closes the current transport and replaces it with one built from cfg.
// On error the previous transport stays in place.
func (t *SwitchableTransport) Apply(cfg config.ConnectionConfig) error {
	next, err := transportFor(cfg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	prev := t.tr
	t.tr, t.cfg = next, cfg
	t.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}

	return nil
}

func (t *SwitchableTransport) Config() config.ConnectionConfig {
	_, cfg := t.snapshot()

	return cfg
}

func (t *SwitchableTransport) Name() string {
	tr, cfg := t.snapshot()
	if tr == nil {
		return SourceNameFromConnector(cfg.Connector)
	}

	return tr.Name()
}

func (t *SwitchableTransport) StatusTarget() string {
	tr, cfg := t.snapshot()
	if r, ok := tr.(transport.StatusTargetResolver); ok {
		if target := strings.TrimSpace(r.StatusTarget()); target != "" {
			return target
		}
	}

	return ConnectionTarget(cfg)
}

func (t *SwitchableTransport) Connect(ctx context.Context) error {
	tr, err := t.active()
	if err != nil {
		return err
	}

	return tr.Connect(ctx)
}

func (t *SwitchableTransport) Close() error {
	if tr, _ := t.snapshot(); tr != nil {
		return tr.Close()
	}

	return nil
}

func (t *SwitchableTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	tr, err := t.active()
	if err != nil {
		return nil, err
	}

	return tr.ReadFrame(ctx)
}

func (t *SwitchableTransport) WriteFrame(ctx context.Context, payload []byte) error {
	tr, err := t.active()
	if err != nil {
		return err
	}

	return tr.WriteFrame(ctx, payload)
}

func (t *SwitchableTransport) snapshot() (transport.Transport, config.ConnectionConfig) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.tr, t.cfg
}

func (t *SwitchableTransport) active() (transport.Transport, error) {
	if tr, _ := t.snapshot(); tr != nil {
		return tr, nil
	}

	return nil, errTransportNotConfigured
}

// NewAdapter returns the simulator adapter for the configured connector: a
// bridge client over tr for ip and serial, the never-connecting dummy otherwise.
func NewAdapter(logger *slog.Logger, cfg config.ConnectionConfig, tr *SwitchableTransport) acquisition.Adapter {
	if !SimSupportAvailable(cfg) || tr == nil {
		return acquisition.DummyAdapter{}
	}

	return simbridge.New(logger, tr, simbridge.DefaultRequestTimeout)
}

// transportFor builds the transport for cfg; the dummy connector has none.
func transportFor(cfg config.ConnectionConfig) (transport.Transport, error) {
	switch cfg.Connector {
	case config.ConnectorIP:
		return transport.NewIPTransport(strings.TrimSpace(cfg.Host), cfg.Port), nil
	case config.ConnectorSerial:
		return transport.NewSerialTransport(strings.TrimSpace(cfg.SerialPort), cfg.SerialBaud), nil
	case config.ConnectorDummy:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown connector: %q", cfg.Connector)
	}
}
