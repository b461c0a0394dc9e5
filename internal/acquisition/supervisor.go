package acquisition

import (
	"context"
	"log/slog"
	"time"

	"github.com/skobkin/simlink/internal/connectors"
)

// Supervisor keeps trying to connect the adapter until it succeeds or the
// context is cancelled. It never gives up on its own.
type Supervisor struct {
	logger  *slog.Logger
	adapter Adapter
	rate    func() time.Duration
	step    time.Duration
	wake    <-chan struct{}

	// OnWaiting runs once when ConnectBlocking starts waiting.
	OnWaiting func()
	// OnConnected runs once when an attempt succeeds.
	OnConnected func()

	attempts int
}

func NewSupervisor(logger *slog.Logger, adapter Adapter, rate func() time.Duration, step time.Duration, wake <-chan struct{}) *Supervisor {
	if logger == nil {
		logger = slog.Default().With("component", "acquisition.supervisor")
	}
	if step <= 0 {
		step = defaultRetryStep
	}

	return &Supervisor{
		logger:  logger,
		adapter: adapter,
		rate:    rate,
		step:    step,
		wake:    wake,
	}
}

// ConnectBlocking attempts a connection roughly once per rate() and returns
// Connected on success or Disconnected once ctx is cancelled.
func (sv *Supervisor) ConnectBlocking(ctx context.Context) connectors.ConnectionState {
	if sv.OnWaiting != nil {
		sv.OnWaiting()
	}

	var lastAttempt time.Time
	for ctx.Err() == nil {
		if lastAttempt.IsZero() || time.Since(lastAttempt) >= sv.rate() {
			lastAttempt = time.Now()
			sv.attempts++
			if sv.adapter.Connect(ctx) {
				sv.logger.Info("connected", "attempts", sv.attempts)
				sv.attempts = 0
				if sv.OnConnected != nil {
					sv.OnConnected()
				}

				return connectors.ConnectionStateConnected
			}
			sv.logger.Debug("connect attempt failed", "attempt", sv.attempts)
		}

		if !sv.pause(ctx) {
			break
		}
	}
	sv.logger.Debug("connect cancelled", "attempts", sv.attempts)
	sv.attempts = 0

	return connectors.ConnectionStateDisconnected
}

// pause sleeps one step. A wake signal cuts it short; cancellation ends it.
func (sv *Supervisor) pause(ctx context.Context) bool {
	timer := time.NewTimer(sv.step)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-sv.wake:
		return true
	case <-timer.C:
		return true
	}
}
