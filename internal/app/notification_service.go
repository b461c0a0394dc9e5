package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/skobkin/simlink/internal/bus"
	"github.com/skobkin/simlink/internal/config"
	"github.com/skobkin/simlink/internal/connectors"
	"github.com/skobkin/simlink/internal/notifications"
)

// NotificationService turns bus events into desktop notifications: connection
// transitions to connected or disconnected, and error status messages.
type NotificationService struct {
	bus    bus.MessageBus
	config func() config.AppConfig
	sender notifications.Sender
	logger *slog.Logger

	mu        sync.Mutex
	lastState connectors.ConnectionState
}

func NewNotificationService(
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:    messageBus,
		config: currentConfig,
		sender: sender,
		logger: logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	sub := s.bus.Subscribe(connectors.TopicConnStatus, connectors.TopicStatusMessage)
	go bus.Dispatch(ctx, s.bus, sub, s.handle)
}

func (s *NotificationService) handle(raw any) {
	prefs := s.prefs()

	var (
		payload notifications.Payload
		ok      bool
	)
	switch msg := raw.(type) {
	case connectors.ConnectionStatus:
		// State is tracked even while notifications are off.
		if !s.stateChanged(msg.State) {
			return
		}
		payload, ok = connectionNotification(msg)
		ok = ok && prefs.Events.ConnectionStatus
	case connectors.StatusMessage:
		payload, ok = errorNotification(msg)
		ok = ok && prefs.Events.Errors
	}
	if !ok || !prefs.Enabled {
		return
	}

	s.logger.Debug("sending notification", "title", payload.Title)
	s.sender.Send(payload)
}

func (s *NotificationService) stateChanged(state connectors.ConnectionState) bool {
	if state == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state == s.lastState {
		return false
	}
	s.lastState = state

	return true
}

func (s *NotificationService) prefs() config.NotificationConfig {
	if s.config == nil {
		return config.Default().Notifications
	}
	cfg := s.config()
	cfg.FillMissingDefaults()

	return cfg.Notifications
}

// connectionNotification reports connected and disconnected only.
func connectionNotification(status connectors.ConnectionStatus) (notifications.Payload, bool) {
	if status.State != connectors.ConnectionStateConnected && status.State != connectors.ConnectionStateDisconnected {
		return notifications.Payload{}, false
	}

	source := notificationSourceName(status.Source)
	if source == "" {
		source = "Unknown"
	}
	details := strings.TrimSpace(status.Target)
	if details == "" {
		details = "No connection details"
	}
	if errText := strings.TrimSpace(status.Err); errText != "" && status.State == connectors.ConnectionStateDisconnected {
		details += " (error: " + errText + ")"
	}

	return notifications.Payload{
		Title:   fmt.Sprintf("%s - %s", source, status.State),
		Content: details,
	}, true
}

func errorNotification(msg connectors.StatusMessage) (notifications.Payload, bool) {
	text := strings.TrimSpace(msg.Text)
	if !msg.IsError || text == "" {
		return notifications.Payload{}, false
	}

	return notifications.Payload{Title: Name + " error", Content: text}, true
}

var notificationSources = map[string]string{
	"ip":     "IP",
	"serial": "Serial",
	"dummy":  "Dummy",
	"replay": "Replay",
}

func notificationSourceName(name string) string {
	name = strings.TrimSpace(name)
	if pretty, ok := notificationSources[strings.ToLower(name)]; ok {
		return pretty
	}

	return name
}
