package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skobkin/simlink/internal/domain"
)

const defaultSessionListLimit = 50

// SessionRepo implements domain.SessionRepository using SQLite.
type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Upsert(ctx context.Context, s domain.ReplaySession) error {
	if s.ID == "" {
		return fmt.Errorf("upsert session: id is empty")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions(id, mode, path, interval_ms, started_at, ended_at, frames, last_error)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			path = excluded.path,
			interval_ms = excluded.interval_ms,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			frames = excluded.frames,
			last_error = excluded.last_error
	`,
		s.ID,
		string(s.Mode),
		s.Path,
		int64(s.IntervalMs),
		timeToUnixMillis(s.StartedAt),
		timeToUnixMillis(s.EndedAt),
		s.Frames,
		nullableString(s.LastError),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// ListRecent returns sessions newest first.
func (r *SessionRepo) ListRecent(ctx context.Context, limit int) ([]domain.ReplaySession, error) {
	if limit <= 0 {
		limit = defaultSessionListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mode, path, interval_ms, started_at, ended_at, frames, last_error
		FROM sessions
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.ReplaySession
	for rows.Next() {
		var (
			s          domain.ReplaySession
			mode       string
			intervalMs int64
			startedMs  int64
			endedMs    int64
			lastError  sql.NullString
		)
		if err := rows.Scan(&s.ID, &mode, &s.Path, &intervalMs, &startedMs, &endedMs, &s.Frames, &lastError); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Mode = domain.SessionMode(mode)
		// #nosec G115 -- interval is written from a uint32.
		s.IntervalMs = uint32(intervalMs)
		s.StartedAt = unixMillisToTime(startedMs)
		s.EndedAt = unixMillisToTime(endedMs)
		s.LastError = lastError.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return out, nil
}
