package acquisition

import (
	"context"

	"github.com/skobkin/simlink/internal/domain"
)

// Adapter is the capability the acquisition worker needs from a live
// simulator integration. All methods are called from the worker goroutine
// only.
type Adapter interface {
	// Connect makes one connection attempt.
	Connect(ctx context.Context) bool
	// FetchData returns the current simulator state, including traffic within
	// radiusKm. ok=false means nothing was fetched this time.
	FetchData(ctx context.Context, radiusKm int) (frame domain.Frame, ok bool)
	// FetchWeather answers a weather request. An empty report list is a valid
	// answer.
	FetchWeather(ctx context.Context, req domain.WeatherRequest) domain.Frame
	// LinkAlive reports whether the adapter still considers its link healthy
	// after the last call.
	LinkAlive() bool
	// SimRunning reports whether the simulator process is still reachable.
	SimRunning() bool
}

// DummyAdapter is used when no simulator integration is available. It never
// connects.
type DummyAdapter struct{}

func (DummyAdapter) Connect(context.Context) bool { return false }

func (DummyAdapter) FetchData(context.Context, int) (domain.Frame, bool) {
	return domain.Frame{}, false
}

func (DummyAdapter) FetchWeather(context.Context, domain.WeatherRequest) domain.Frame {
	return domain.Frame{}
}

func (DummyAdapter) LinkAlive() bool { return false }

func (DummyAdapter) SimRunning() bool { return false }
