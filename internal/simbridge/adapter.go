package simbridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skobkin/simlink/internal/domain"
	"github.com/skobkin/simlink/internal/transport"
	"github.com/skobkin/simlink/internal/wire"
)

const (
	DefaultRequestTimeout = 5 * time.Second

	// maxStaleResponses bounds how many late replies to earlier requests are
	// skipped while waiting for the current one.
	maxStaleResponses = 16
)

// State is the adapter's view of the bridge link after the last call.
type State int

const (
	StateLinkLost State = iota
	StateOK
	StateFetchError
)

func (s State) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateFetchError:
		return "fetch_error"
	default:
		return "link_lost"
	}
}

// Adapter drives a simulator bridge through request/response round trips
// over a transport. It is used from a single goroutine.
type Adapter struct {
	logger    *slog.Logger
	transport transport.Transport
	timeout   time.Duration

	nextID     uint32
	state      State
	simRunning bool
	linked     bool
}

func New(logger *slog.Logger, tr transport.Transport, requestTimeout time.Duration) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}

	return &Adapter{
		logger:    logger.With("component", "simbridge", "transport", tr.Name()),
		transport: tr,
		timeout:   requestTimeout,
	}
}

// StatusTarget describes where the bridge is reached, for status events.
func (a *Adapter) StatusTarget() string {
	if resolver, ok := a.transport.(transport.StatusTargetResolver); ok {
		return resolver.StatusTarget()
	}

	return ""
}

func (a *Adapter) State() State {
	return a.state
}

// Connect opens the transport and greets the bridge. It succeeds only when
// the bridge reports a running simulator.
func (a *Adapter) Connect(ctx context.Context) bool {
	if a.linked {
		a.drop()
	}
	if err := a.transport.Connect(ctx); err != nil {
		a.logger.Debug("bridge connect failed", "error", err)
		a.state = StateLinkLost
		a.simRunning = false

		return false
	}
	a.linked = true

	resp, err := a.roundTrip(ctx, wire.Request{Kind: wire.RequestHello})
	if err != nil {
		a.logger.Warn("bridge hello failed", "error", err)
		a.drop()

		return false
	}
	a.simRunning = resp.SimRunning
	if !resp.OK || !resp.SimRunning {
		a.logger.Info("bridge reachable but simulator not ready", "error", resp.Error)
		a.drop()

		return false
	}
	a.state = StateOK
	a.logger.Info("bridge session established")

	return true
}

func (a *Adapter) FetchData(ctx context.Context, radiusKm int) (domain.Frame, bool) {
	if !a.linked {
		a.state = StateLinkLost

		return domain.Frame{}, false
	}

	req := wire.Request{Kind: wire.RequestData}
	if radiusKm > 0 {
		// #nosec G115 -- radius is a small positive config value.
		req.RadiusKm = uint32(radiusKm)
	}
	resp, err := a.roundTrip(ctx, req)
	if err != nil {
		a.logger.Warn("fetch data failed", "error", err)
		a.drop()

		return domain.Frame{}, false
	}

	a.simRunning = resp.SimRunning
	if !resp.OK || resp.Frame == nil {
		if !resp.SimRunning {
			a.logger.Info("bridge reports simulator stopped")
			a.drop()

			return domain.Frame{}, false
		}
		a.state = StateFetchError
		if resp.Error != "" {
			a.logger.Debug("bridge returned no data", "error", resp.Error)
		}

		return domain.Frame{}, false
	}
	a.state = StateOK

	return *resp.Frame, true
}

func (a *Adapter) FetchWeather(ctx context.Context, req domain.WeatherRequest) domain.Frame {
	if !a.linked {
		a.state = StateLinkLost

		return domain.Frame{}
	}

	resp, err := a.roundTrip(ctx, wire.Request{
		Kind:    wire.RequestWeather,
		Station: req.Station,
		Nearest: req.Nearest,
		Lat:     req.Lat,
		Lon:     req.Lon,
	})
	if err != nil {
		a.logger.Warn("fetch weather failed", "query", req.Query(), "error", err)
		a.drop()

		return domain.Frame{}
	}
	a.simRunning = resp.SimRunning
	if resp.Frame == nil {
		if resp.Error == "" {
			return domain.Frame{}
		}
		a.logger.Debug("bridge returned no weather", "query", req.Query(), "error", resp.Error)

		// The reason travels with the empty weather reply.
		return domain.ErrorFrame(resp.Error)
	}

	return *resp.Frame
}

func (a *Adapter) LinkAlive() bool {
	return a.linked && a.state != StateLinkLost
}

func (a *Adapter) SimRunning() bool {
	return a.linked && a.simRunning
}

// Close releases the transport.
func (a *Adapter) Close() error {
	a.linked = false
	a.state = StateLinkLost
	a.simRunning = false

	if err := a.transport.Close(); err != nil {
		return fmt.Errorf("close bridge transport: %w", err)
	}

	return nil
}

func (a *Adapter) drop() {
	if err := a.Close(); err != nil {
		a.logger.Debug("close after link loss failed", "error", err)
	}
}

// roundTrip sends req and waits for the response carrying the same id.
func (a *Adapter) roundTrip(ctx context.Context, req wire.Request) (wire.Response, error) {
	a.nextID++
	if a.nextID == 0 {
		a.nextID = 1
	}
	req.ID = a.nextID

	rctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.transport.WriteFrame(rctx, wire.EncodeRequest(req)); err != nil {
		return wire.Response{}, fmt.Errorf("send %s request: %w", req.Kind, err)
	}

	for stale := 0; stale <= maxStaleResponses; stale++ {
		payload, err := a.transport.ReadFrame(rctx)
		if err != nil {
			return wire.Response{}, fmt.Errorf("read %s response: %w", req.Kind, err)
		}
		resp, err := wire.DecodeResponse(payload)
		if err != nil {
			return wire.Response{}, fmt.Errorf("decode %s response: %w", req.Kind, err)
		}
		if resp.ID != req.ID {
			a.logger.Debug("skipping stale response", "want", req.ID, "got", resp.ID)

			continue
		}

		return resp, nil
	}

	return wire.Response{}, fmt.Errorf("no %s response after %d stale replies", req.Kind, maxStaleResponses)
}
