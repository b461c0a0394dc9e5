package persistence

import (
	"context"

	"github.com/skobkin/simlink/internal/bus"
	"github.com/skobkin/simlink/internal/connectors"
	"github.com/skobkin/simlink/internal/domain"
)

// WriteQueue serializes persistence writes from async bus events.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error)
}

// StartProjection stores replay sessions and weather replies published on the
// bus until ctx is done or the bus closes. Subscriptions are registered before
// it returns.
func StartProjection(ctx context.Context, b bus.MessageBus, queue WriteQueue, sessions domain.SessionRepository, weather domain.WeatherRepository) {
	sessionSub := b.Subscribe(connectors.TopicReplaySession)
	frameSub := b.Subscribe(connectors.TopicFrame)

	go bus.Dispatch(ctx, b, sessionSub, func(raw any) {
		event, ok := raw.(connectors.ReplaySessionEvent)
		if !ok {
			return
		}
		session := event.Session
		queue.Enqueue("upsert_session", func(writeCtx context.Context) error {
			return sessions.Upsert(writeCtx, session)
		})
	})

	go bus.Dispatch(ctx, b, frameSub, func(raw any) {
		frame, ok := raw.(domain.Frame)
		if !ok || !frame.IsWeatherOnly() || len(frame.Weather) == 0 {
			return
		}
		reports := append([]domain.WeatherReport(nil), frame.Weather...)
		receivedAt := frame.Timestamp
		queue.Enqueue("upsert_weather", func(writeCtx context.Context) error {
			return weather.UpsertReports(writeCtx, reports, receivedAt)
		})
	})
}
