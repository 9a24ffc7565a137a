package notifications

import (
	"log/slog"
	"strings"

	"github.com/gen2brain/beeep"
)

// BeeepSender shows notifications through the desktop notification daemon.
type BeeepSender struct {
	logger *slog.Logger
	notify func(title, message string, icon any) error
}

func NewBeeepSender(logger *slog.Logger) *BeeepSender {
	if logger == nil {
		logger = slog.Default().With("component", "notifications")
	}

	return &BeeepSender{logger: logger, notify: beeep.Notify}
}

func (s *BeeepSender) Send(payload Payload) {
	if s == nil {
		return
	}
	title := strings.TrimSpace(payload.Title)
	content := strings.TrimSpace(payload.Content)
	if title == "" && content == "" {
		return
	}
	if err := s.notify(title, content, ""); err != nil {
		s.logger.Warn("desktop notification failed", "title", title, "error", err)
	}
}

// BeeepDialogs shows errors as alerts and infos as plain notifications.
type BeeepDialogs struct {
	logger *slog.Logger
	alert  func(title, message string, icon any) error
	notify func(title, message string, icon any) error
}

func NewBeeepDialogs(logger *slog.Logger) *BeeepDialogs {
	if logger == nil {
		logger = slog.Default().With("component", "notifications")
	}

	return &BeeepDialogs{logger: logger, alert: beeep.Alert, notify: beeep.Notify}
}

func (d *BeeepDialogs) ShowError(title, message string) {
	if err := d.alert(strings.TrimSpace(title), strings.TrimSpace(message), ""); err != nil {
		d.logger.Warn("error dialog failed", "title", title, "error", err)
	}
}

func (d *BeeepDialogs) ShowInfo(title, message string) {
	if err := d.notify(strings.TrimSpace(title), strings.TrimSpace(message), ""); err != nil {
		d.logger.Warn("info dialog failed", "title", title, "error", err)
	}
}
