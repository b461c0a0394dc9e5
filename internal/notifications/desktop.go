package notifications

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// DesktopSender shows notifications through the OS notification daemon.
type DesktopSender struct {
	logger *slog.Logger
	notify func(title, message string, icon any) error
	icon   any
}

// NewDesktopSender registers appName with the notification backend. icon may
// be a file path, raw image bytes or nil.
func NewDesktopSender(logger *slog.Logger, appName string, icon any) *DesktopSender {
	if logger == nil {
		logger = slog.Default().With("component", "notifications")
	}
	if appName != "" {
		beeep.AppName = appName
	}
	if icon == nil {
		icon = ""
	}

	return &DesktopSender{
		logger: logger,
		notify: beeep.Notify,
		icon:   icon,
	}
}

func (s *DesktopSender) Send(payload Payload) {
	if err := s.notify(payload.Title, payload.Content, s.icon); err != nil {
		s.logger.Warn("desktop notification failed", "title", payload.Title, "error", err)
	}
}
