package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skobkin/simlink/internal/domain"
)

// WeatherRepo keeps the last raw report seen per station.
type WeatherRepo struct {
	db *sql.DB
}

func NewWeatherRepo(db *sql.DB) *WeatherRepo {
	return &WeatherRepo{db: db}
}

func (r *WeatherRepo) UpsertReports(ctx context.Context, reports []domain.WeatherReport, receivedAt time.Time) error {
	if len(reports) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin weather tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, report := range reports {
		station := strings.ToUpper(strings.TrimSpace(report.Station))
		if station == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO weather_reports(station, raw, observed_at, received_at)
			VALUES(?, ?, ?, ?)
			ON CONFLICT(station) DO UPDATE SET
				raw = excluded.raw,
				observed_at = excluded.observed_at,
				received_at = excluded.received_at
		`, station, report.Raw, timeToUnixMillis(report.ObservedAt), timeToUnixMillis(receivedAt)); err != nil {
			return fmt.Errorf("upsert weather report %s: %w", station, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit weather tx: %w", err)
	}

	return nil
}

func (r *WeatherRepo) Latest(ctx context.Context, station string) (domain.WeatherReport, bool, error) {
	station = strings.ToUpper(strings.TrimSpace(station))

	var (
		report     domain.WeatherReport
		observedMs int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT station, raw, observed_at
		FROM weather_reports
		WHERE station = ?
	`, station).Scan(&report.Station, &report.Raw, &observedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WeatherReport{}, false, nil
	}
	if err != nil {
		return domain.WeatherReport{}, false, fmt.Errorf("load weather report: %w", err)
	}
	report.ObservedAt = unixMillisToTime(observedMs)

	return report, true, nil
}
