package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/skobkin/simlink/internal/config"
)

// Manager owns the process logger: its level, output format and optional log
// file. Loggers handed out by Logger follow later Configure and SetVerbose
// calls because they share the level variable.
type Manager struct {
	console io.Writer
	level   slog.LevelVar

	mu         sync.RWMutex
	configured slog.Level
	logger     *slog.Logger
	file       *os.File
}

func NewManager() *Manager {
	return newManager(os.Stdout)
}

func newManager(console io.Writer) *Manager {
	m := &Manager{console: console, configured: slog.LevelInfo}
	m.logger = slog.New(m.handler(console, config.DefaultLogFormat))

	return m
}

// Configure applies cfg and installs the result as the slog default. With
// LogToFile set, every record goes to both the console and filePath.
func (m *Manager) Configure(cfg config.LoggingConfig, filePath string) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeFileLocked()
	handler := m.handler(m.console, cfg.Format)
	if cfg.LogToFile {
		file, err := openLogFile(filePath)
		if err != nil {
			return err
		}
		m.file = file
		handler = teeHandler{handler, m.handler(file, cfg.Format)}
	}

	m.configured = level
	m.level.Set(level)
	m.logger = slog.New(handler)
	slog.SetDefault(m.logger)

	return nil
}

// SetVerbose drops to debug while verbose acquisition logging is on and
// restores the configured level afterwards.
func (m *Manager) SetVerbose(verbose bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if verbose && m.configured > slog.LevelDebug {
		m.level.Set(slog.LevelDebug)

		return
	}
	m.level.Set(m.configured)
}

func (m *Manager) Level() slog.Level {
	return m.level.Level()
}

func (m *Manager) Logger(component string) *slog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.logger.With("component", component)
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closeFileLocked()
}

func (m *Manager) closeFileLocked() error {
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}

	return nil
}

func (m *Manager) handler(w io.Writer, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: &m.level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, opts)
	}

	return slog.NewTextHandler(w, opts)
}

func openLogFile(path string) (*os.File, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	// #nosec G304 -- path comes from the runtime paths in the user config dir.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return file, nil
}

func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %q", raw)
	}
}

// teeHandler hands each record to every handler. A record counts as written
// when at least one handler accepted it, so a broken console does not lose
// the log file.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var (
		errs    []error
		written bool
	)
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)

			continue
		}
		written = true
	}
	if written {
		return nil
	}

	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}

	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}

	return out
}
