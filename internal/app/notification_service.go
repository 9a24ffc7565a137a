package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jenkinstray/jenkinstray/internal/bus"
	"github.com/jenkinstray/jenkinstray/internal/config"
	"github.com/jenkinstray/jenkinstray/internal/connectors"
	"github.com/jenkinstray/jenkinstray/internal/history"
	"github.com/jenkinstray/jenkinstray/internal/notifications"
)

const (
	notificationTitleConnected        = "Connected to Jenkins"
	notificationTitleConnectionFailed = "Connection to Jenkins failed"
)

// NotificationService listens to bus events and emits user-facing notifications.
type NotificationService struct {
	bus           bus.MessageBus
	currentConfig func() config.AppConfig
	sender        notifications.Sender
	dialogs       notifications.Dialogs
	logger        *slog.Logger

	connStatusMu     sync.Mutex
	lastConnState    connectors.ConnectionState
	lastConnStateSet bool
}

func NewNotificationService(
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	sender notifications.Sender,
	dialogs notifications.Dialogs,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		currentConfig: currentConfig,
		sender:        sender,
		dialogs:       dialogs,
		logger:        logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	jobSub := s.bus.Subscribe(connectors.TopicJobResult)
	connSub := s.bus.Subscribe(connectors.TopicConnStatus)

	go func() {
		defer s.bus.Unsubscribe(jobSub, connectors.TopicJobResult)
		defer s.bus.Unsubscribe(connSub, connectors.TopicConnStatus)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-jobSub:
				if !ok {
					return
				}
				entry, ok := raw.(history.Entry)
				if !ok {
					continue
				}
				s.handleJobResult(entry)
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				status, ok := raw.(connectors.ConnectionStatus)
				if !ok {
					continue
				}
				s.handleConnectionStatus(status)
			}
		}
	}()
}

func (s *NotificationService) handleJobResult(entry history.Entry) {
	prefs := s.notifyPrefs()
	if entry.Succeeded() && !prefs.IsNotifySuccess {
		s.logger.Debug("skipping success notification", "project", entry.Project, "build", entry.BuildNumber)

		return
	}

	s.send(notifications.Payload{
		Title:   entry.Title(),
		Content: entry.Summary(),
	})
}

func (s *NotificationService) handleConnectionStatus(status connectors.ConnectionStatus) {
	if status.State == "" {
		return
	}

	s.connStatusMu.Lock()
	if s.lastConnStateSet && s.lastConnState == status.State {
		s.connStatusMu.Unlock()

		return
	}
	s.lastConnState = status.State
	s.lastConnStateSet = true
	s.connStatusMu.Unlock()

	target := strings.TrimSpace(status.Target)
	if target == "" {
		target = "No connection details"
	}

	switch status.State {
	case connectors.ConnectionStateOpen:
		s.send(notifications.Payload{
			Title:   notificationTitleConnected,
			Content: target,
		})
	case connectors.ConnectionStateFailed:
		details := target
		if errText := strings.TrimSpace(status.Err); errText != "" {
			details = fmt.Sprintf("%s (error: %s)", target, errText)
		}
		s.send(notifications.Payload{
			Title:   notificationTitleConnectionFailed,
			Content: details,
		})
		if s.dialogs != nil {
			s.dialogs.ShowError(notificationTitleConnectionFailed, details)
		}
	}
}

func (s *NotificationService) notifyPrefs() config.NotifyConfiguration {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
	}

	return cfg.Notify
}

func (s *NotificationService) send(notification notifications.Payload) {
	title := strings.TrimSpace(notification.Title)
	content := strings.TrimSpace(notification.Content)
	if title == "" && content == "" {
		return
	}
	s.logger.Debug("sending notification", "title", title)
	s.sender.Send(notifications.Payload{
		Title:   title,
		Content: content,
	})
}
