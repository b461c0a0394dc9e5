package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skobkin/simlink/internal/bus"
	"github.com/skobkin/simlink/internal/connectors"
	"github.com/skobkin/simlink/internal/domain"
	"github.com/skobkin/simlink/internal/replay"
)

const (
	statusWaiting   = "Not connected to the simulator. Waiting ..."
	statusConnected = "Connected to simulator."
)

type sourceMode int

const (
	sourceNone sourceMode = iota
	sourceLive
	sourceReplay
)

// Service runs the background acquisition worker. Frames, connection state
// changes and status messages are published on the bus; the exported methods
// are safe to call from any goroutine.
type Service struct {
	logger     *slog.Logger
	bus        bus.MessageBus
	adapter    Adapter
	opts       Options
	supervisor *Supervisor

	// mu guards the weather slot and tunables, and is held for the duration
	// of every FetchData/FetchWeather call.
	mu            sync.Mutex
	weather       domain.WeatherRequest
	updateRate    time.Duration
	reconnectRate time.Duration
	replaySpeed   float64
	replaying     bool

	wake chan struct{}

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}

	connected    atomic.Bool
	reconnecting atomic.Bool

	// Owned by the worker goroutine.
	nextSeq  uint32
	mode     sourceMode
	recorder *replay.Recorder
	player   *replay.Player
	session  domain.ReplaySession
}

// New creates a stopped service. A nil adapter means the live path is
// unavailable and only replay files can feed frames.
func New(logger *slog.Logger, messageBus bus.MessageBus, adapter Adapter, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	s := &Service{
		logger:        logger.With("component", "acquisition"),
		bus:           messageBus,
		adapter:       adapter,
		opts:          opts,
		updateRate:    opts.UpdateRate,
		reconnectRate: opts.ReconnectRate,
		replaySpeed:   opts.ReplaySpeed,
		wake:          make(chan struct{}, 1),
		nextSeq:       1,
	}
	if adapter != nil {
		s.supervisor = NewSupervisor(logger.With("component", "acquisition.supervisor"), adapter, s.currentReconnectRate, opts.RetryStep, s.wake)
		s.supervisor.OnWaiting = s.onWaiting
		s.supervisor.OnConnected = s.onConnected
	}

	return s
}

// Start launches the worker. Calling it while the worker runs only reports a
// warning.
func (s *Service) Start(ctx context.Context) bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.runningLocked() {
		s.logger.Warn("start ignored: worker already running")
		s.publishStatus("Data reader is already running.", false)

		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.drainWake()
	go s.run(runCtx, s.done)

	return true
}

// Stop cancels the worker and waits until it has closed its files and
// published the final disconnected status.
func (s *Service) Stop() bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.runningLocked() {
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.logger.Warn("stop ignored: worker not running")
		s.publishStatus("Data reader is not running.", false)

		return false
	}

	s.cancel()
	s.signal()
	<-s.done
	s.cancel = nil

	return true
}

func (s *Service) IsRunning() bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	return s.runningLocked()
}

func (s *Service) IsConnected() bool {
	return s.connected.Load()
}

func (s *Service) IsReconnecting() bool {
	return s.reconnecting.Load()
}

// SubmitWeatherRequest queues req for the next tick, replacing any request
// still pending. During replay the request is answered at once with an empty
// frame since there is no simulator to ask.
func (s *Service) SubmitWeatherRequest(req domain.WeatherRequest) {
	if !req.Valid() {
		s.logger.Debug("ignoring invalid weather request")

		return
	}

	s.mu.Lock()
	if s.replaying {
		s.mu.Unlock()
		s.logger.Info("weather request answered empty during replay", "query", req.Query())
		s.emit(domain.Frame{Timestamp: now()})

		return
	}
	if s.weather.Valid() {
		s.logger.Debug("replacing pending weather request", "previous", s.weather.Query(), "query", req.Query())
	}
	s.weather = req
	s.mu.Unlock()

	s.signal()
}

// PendingWeatherRequest returns the request waiting for the next tick.
func (s *Service) PendingWeatherRequest() (domain.WeatherRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.weather, s.weather.Valid()
}

func (s *Service) SetUpdateRate(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.updateRate = d
	s.mu.Unlock()
	s.signal()
}

func (s *Service) SetReconnectRate(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.reconnectRate = d
	s.mu.Unlock()
}

func (s *Service) SetReplaySpeed(speed float64) {
	if speed <= 0 {
		return
	}
	s.mu.Lock()
	s.replaySpeed = speed
	s.mu.Unlock()
	s.signal()
}

func (s *Service) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Service) currentReconnectRate() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reconnectRate
}

func (s *Service) currentUpdateRate() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateRate
}

func (s *Service) setReplaying(v bool) {
	s.mu.Lock()
	s.replaying = v
	s.mu.Unlock()
}

// signal wakes the worker out of its sleep. It never blocks.
func (s *Service) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) drainWake() {
	select {
	case <-s.wake:
	default:
	}
}

func (s *Service) onWaiting() {
	s.reconnecting.Store(true)
	s.publishStatus(statusWaiting, false)
	s.publishConnStatus(connectors.ConnectionStateReconnecting, nil)
}

func (s *Service) onConnected() {
	s.reconnecting.Store(false)
	s.connected.Store(true)
	s.publishConnStatus(connectors.ConnectionStateConnected, nil)
	s.publishStatus(statusConnected, false)
}

// emit publishes a copy of frame, so the worker's buffers never reach
// consumers.
func (s *Service) emit(frame domain.Frame) {
	frame = frame.Clone()
	if s.opts.Verbose {
		s.logger.Debug("frame emitted", "seq", frame.SequenceID, "status", frame.Status, "weather", len(frame.Weather), "bytes", len(frame.Payload))
	}
	s.bus.Publish(connectors.TopicFrame, frame)
}

func (s *Service) publishStatus(text string, isError bool) {
	if isError {
		s.logger.Error("status", "text", text)
	} else {
		s.logger.Info("status", "text", text)
	}
	s.bus.Publish(connectors.TopicStatusMessage, connectors.StatusMessage{
		Text:      text,
		IsError:   isError,
		Timestamp: time.Now(),
	})
}

func (s *Service) publishConnStatus(state connectors.ConnectionState, err error) {
	status := connectors.ConnectionStatus{
		State:     state,
		Source:    s.opts.Source,
		Target:    s.opts.Target,
		Timestamp: time.Now(),
	}
	if err != nil {
		status.Err = err.Error()
	}
	s.bus.Publish(connectors.TopicConnStatus, status)
}

func (s *Service) publishSession(closed bool) {
	s.bus.Publish(connectors.TopicReplaySession, connectors.ReplaySessionEvent{
		Session: s.session,
		Closed:  closed,
	})
}

// now is the frame timestamp: UTC, whole seconds.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func errorText(path string, err error) string {
	return fmt.Sprintf("Error reading \"%s\": %v.", path, err)
}
