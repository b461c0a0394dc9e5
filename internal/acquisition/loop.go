package acquisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skobkin/simlink/internal/connectors"
	"github.com/skobkin/simlink/internal/domain"
	"github.com/skobkin/simlink/internal/replay"
)

var errLinkLost = errors.New("simulator link lost")

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.logger.Info("acquisition started",
		"update_rate", s.currentUpdateRate(),
		"reconnect_rate", s.currentReconnectRate(),
		"radius_km", s.opts.SearchRadiusKm,
	)
	s.nextSeq = 1
	s.mode = sourceNone

	switch {
	case s.openReplaySource():
		s.mode = sourceReplay
		s.connected.Store(true)
		s.publishConnStatus(connectors.ConnectionStateConnected, nil)
	case s.adapter != nil:
		s.mode = sourceLive
		s.supervisor.ConnectBlocking(ctx)
	default:
		s.logger.Warn("no frame source available")
	}

	for ctx.Err() == nil {
		s.tick(ctx)
		if !s.sleep(ctx, s.tickInterval()) {
			break
		}
	}

	s.closeSession("")
	s.nextSeq = 1
	s.mode = sourceNone
	s.mu.Lock()
	s.weather = domain.WeatherRequest{}
	s.mu.Unlock()
	s.connected.Store(false)
	s.reconnecting.Store(false)
	s.publishConnStatus(connectors.ConnectionStateDisconnected, nil)
	s.logger.Info("acquisition stopped")
}

// openReplaySource prepares file I/O. Replay wins over recording. It reports
// true when frames should come from a replay file.
func (s *Service) openReplaySource() bool {
	switch {
	case s.opts.ReplayPath != "":
		player, err := replay.Open(s.opts.ReplayPath)
		if err != nil {
			s.logger.Error("open replay file failed", "path", s.opts.ReplayPath, "error", err)
			s.publishStatus(replayOpenError(s.opts.ReplayPath, err), true)

			return false
		}
		s.player = player
		s.setReplaying(true)
		s.beginSession(domain.SessionModeReplay, player.Path(), player.Header().UpdateIntervalMs)
		s.publishStatus(fmt.Sprintf("Replaying from \"%s\".", player.Path()), false)

		return true
	case s.opts.RecordPath != "":
		rec, err := replay.Create(s.opts.RecordPath, s.currentUpdateRate())
		if err != nil {
			s.logger.Error("open record file failed", "path", s.opts.RecordPath, "error", err)
			s.publishStatus(fmt.Sprintf("Cannot open \"%s\": %v.", s.opts.RecordPath, err), true)

			return false
		}
		s.recorder = rec
		s.beginSession(domain.SessionModeRecord, rec.Path(), rec.Header().UpdateIntervalMs)
		s.publishStatus(fmt.Sprintf("Saving replay to \"%s\".", rec.Path()), false)
	}

	return false
}

func replayOpenError(path string, err error) string {
	switch {
	case errors.Is(err, replay.ErrTooSmall):
		return fmt.Sprintf("Cannot open \"%s\". File is too small.", path)
	case errors.Is(err, replay.ErrBadMagic):
		return fmt.Sprintf("Cannot open \"%s\". Is not a replay file - wrong magic number.", path)
	case errors.Is(err, replay.ErrBadVersion):
		return fmt.Sprintf("Cannot open \"%s\". Wrong version.", path)
	default:
		return fmt.Sprintf("Cannot open \"%s\": %v.", path, err)
	}
}

func (s *Service) beginSession(mode domain.SessionMode, path string, intervalMs uint32) {
	s.session = domain.ReplaySession{
		ID:         uuid.NewString(),
		Mode:       mode,
		Path:       path,
		IntervalMs: intervalMs,
		StartedAt:  time.Now().UTC(),
	}
	s.publishSession(false)
}

// closeSession closes whichever replay file is open and publishes the final
// session record.
func (s *Service) closeSession(lastError string) {
	if s.recorder == nil && s.player == nil {
		return
	}

	var closeErr error
	if s.recorder != nil {
		s.session.Frames = s.recorder.Frames()
		closeErr = s.recorder.Close()
		s.recorder = nil
	}
	if s.player != nil {
		s.session.Frames = s.player.Frames()
		closeErr = s.player.Close()
		s.player = nil
		s.setReplaying(false)
	}
	if closeErr != nil {
		s.logger.Warn("close replay file failed", "path", s.session.Path, "error", closeErr)
		if lastError == "" {
			lastError = closeErr.Error()
		}
	}

	s.session.EndedAt = time.Now().UTC()
	s.session.LastError = lastError
	s.publishSession(true)
	s.logger.Info("replay session closed", "mode", s.session.Mode, "path", s.session.Path, "frames", s.session.Frames)
}

func (s *Service) tick(ctx context.Context) {
	switch s.mode {
	case sourceReplay:
		s.tickReplay()
	case sourceLive:
		s.tickLive(ctx)
	case sourceNone:
	}
}

func (s *Service) tickReplay() {
	// A request that slipped in before the player opened is answered here.
	s.mu.Lock()
	pending := s.weather
	s.weather = domain.WeatherRequest{}
	s.mu.Unlock()
	if pending.Valid() {
		s.logger.Info("weather request answered empty during replay", "query", pending.Query())
		s.emit(domain.Frame{Timestamp: now()})
	}

	loops := s.player.Loops()
	frame, err := s.player.Next()
	if err != nil {
		path := s.player.Path()
		s.logger.Error("replay read failed", "path", path, "error", err)
		s.connected.Store(false)
		s.publishStatus(errorText(path, err), true)
		s.closeSession(err.Error())
		s.mode = sourceNone
		s.publishConnStatus(connectors.ConnectionStateDisconnected, err)

		return
	}
	if s.player.Loops() != loops {
		s.logger.Info("replay restarted from the first frame", "path", s.player.Path(), "loops", s.player.Loops())
	}
	s.emit(frame)
}

func (s *Service) tickLive(ctx context.Context) {
	frame, ok, isWeather := s.fetch(ctx)
	if !ok {
		s.handleFetchFailure(ctx)

		return
	}

	s.emit(frame)
	if isWeather {
		return
	}

	if !s.connected.Swap(true) {
		s.reconnecting.Store(false)
		s.publishConnStatus(connectors.ConnectionStateConnected, nil)
	}
	if s.recorder != nil && frame.SequenceID > 0 {
		if err := s.recorder.Append(frame); err != nil {
			path := s.recorder.Path()
			s.logger.Error("record frame failed", "path", path, "error", err)
			s.publishStatus(fmt.Sprintf("Error writing \"%s\": %v.", path, err), true)
			s.closeSession(err.Error())
		}
	}
}

// fetch performs one adapter call under mu. A pending weather request takes
// the tick; the returned frame then has sequence 0 and is always emitted.
func (s *Service) fetch(ctx context.Context) (frame domain.Frame, ok bool, isWeather bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req := s.weather; req.Valid() {
		s.weather = domain.WeatherRequest{}
		frame = s.adapter.FetchWeather(ctx, req)
		frame.SequenceID = 0
		frame.Timestamp = now()
		if len(frame.Weather) == 0 {
			s.logger.Warn("weather requested but nothing found", "query", req.Query())
		} else if s.opts.Verbose {
			s.logger.Debug("weather fetched", "query", req.Query(), "reports", len(frame.Weather))
		}

		return frame, true, true
	}

	frame, ok = s.adapter.FetchData(ctx, s.opts.SearchRadiusKm)
	if !ok {
		return domain.Frame{}, false, false
	}
	frame.SequenceID = s.nextSeq
	s.nextSeq++
	frame.Timestamp = now()

	return frame, true, false
}

func (s *Service) handleFetchFailure(ctx context.Context) {
	s.mu.Lock()
	alive := s.adapter.LinkAlive()
	running := alive || s.adapter.SimRunning()
	s.mu.Unlock()

	if alive {
		if s.opts.Verbose {
			s.logger.Debug("no data this tick")
		}

		return
	}

	if s.connected.Swap(false) {
		s.logger.Warn("error fetching data from simulator")
		s.publishConnStatus(connectors.ConnectionStateDisconnected, errLinkLost)
	}
	if !running {
		s.supervisor.ConnectBlocking(ctx)
	}
}

func (s *Service) tickInterval() time.Duration {
	if s.mode == sourceReplay && s.player != nil {
		s.mu.Lock()
		speed := s.replaySpeed
		s.mu.Unlock()

		return replayInterval(s.player.Interval(), speed)
	}

	return s.currentUpdateRate()
}

// sleep waits for d unless woken early. It returns false once ctx is done.
func (s *Service) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-s.wake:
		return ctx.Err() == nil
	case <-timer.C:
		return true
	}
}
