package domain

import (
	"context"
	"time"
)

type SessionMode string

const (
	SessionModeRecord SessionMode = "record"
	SessionModeReplay SessionMode = "replay"
)

// ReplaySession describes one recording or playback run.
type ReplaySession struct {
	ID         string
	Mode       SessionMode
	Path       string
	IntervalMs uint32
	StartedAt  time.Time
	EndedAt    time.Time
	Frames     int
	LastError  string
}

type SessionRepository interface {
	Upsert(ctx context.Context, s ReplaySession) error
	ListRecent(ctx context.Context, limit int) ([]ReplaySession, error)
}

type WeatherRepository interface {
	UpsertReports(ctx context.Context, reports []WeatherReport, receivedAt time.Time) error
	Latest(ctx context.Context, station string) (WeatherReport, bool, error)
}
