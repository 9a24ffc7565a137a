package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jenkinstray/jenkinstray/internal/bus"
	"github.com/jenkinstray/jenkinstray/internal/config"
	"github.com/jenkinstray/jenkinstray/internal/connectors"
	"github.com/jenkinstray/jenkinstray/internal/history"
	"github.com/jenkinstray/jenkinstray/internal/notifications"
)

func TestNotificationServiceJobResult(t *testing.T) {
	messageBus := newTestMessageBus(t)
	cfg := config.Default()
	sender := newCollectingNotificationSender()
	service := NewNotificationService(messageBus, func() config.AppConfig { return cfg }, sender, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	messageBus.Publish(connectors.TopicJobResult, history.NewEntry("api", 5, history.StatusFailure, history.ResultFailure, time.Now()))

	got := sender.waitForCount(t, 1)
	if got[0].Title != "api #5" {
		t.Fatalf("expected title api #5, got %q", got[0].Title)
	}
	if got[0].Content != "FAILURE (Failure)" {
		t.Fatalf("unexpected content %q", got[0].Content)
	}
}

func TestNotificationServiceRespectsNotifySuccess(t *testing.T) {
	messageBus := newTestMessageBus(t)
	cfg := config.Default()
	cfg.Notify.IsNotifySuccess = false
	var cfgMu sync.RWMutex
	sender := newCollectingNotificationSender()
	service := NewNotificationService(
		messageBus,
		func() config.AppConfig {
			cfgMu.RLock()
			defer cfgMu.RUnlock()

			return cfg
		},
		sender,
		nil,
		nil,
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	success := history.NewEntry("web", 1, history.StatusSuccess, history.ResultSuccess, time.Now())
	messageBus.Publish(connectors.TopicJobResult, success)
	sender.assertCount(t, 0)

	messageBus.Publish(connectors.TopicJobResult, history.NewEntry("web", 2, history.StatusStart, history.ResultNone, time.Now()))
	sender.waitForCount(t, 1)

	cfgMu.Lock()
	cfg.Notify.IsNotifySuccess = true
	cfgMu.Unlock()
	messageBus.Publish(connectors.TopicJobResult, success)
	sender.waitForCount(t, 2)
}

func TestNotificationServiceConnectionStatusFilteringAndFormatting(t *testing.T) {
	messageBus := newTestMessageBus(t)
	cfg := config.Default()
	sender := newCollectingNotificationSender()
	dialogs := &collectingDialogs{}
	service := NewNotificationService(messageBus, func() config.AppConfig { return cfg }, sender, dialogs, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	open := connectors.ConnectionStatus{State: connectors.ConnectionStateOpen, Target: "ws://ci/notify"}
	messageBus.Publish(connectors.TopicConnStatus, open)
	got := sender.waitForCount(t, 1)
	if got[0].Title != notificationTitleConnected || got[0].Content != "ws://ci/notify" {
		t.Fatalf("unexpected connected notification %+v", got[0])
	}

	// Duplicate consecutive state must be ignored.
	messageBus.Publish(connectors.TopicConnStatus, open)
	sender.assertCount(t, 1)

	// Connecting itself should not notify.
	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateConnecting, Target: "ws://ci/notify"})
	sender.assertCount(t, 1)

	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{
		State:  connectors.ConnectionStateFailed,
		Target: "ws://ci/notify",
		Err:    "connection refused",
	})
	got = sender.waitForCount(t, 2)
	if got[1].Title != notificationTitleConnectionFailed {
		t.Fatalf("expected failure title, got %q", got[1].Title)
	}
	if got[1].Content != "ws://ci/notify (error: connection refused)" {
		t.Fatalf("unexpected failure content %q", got[1].Content)
	}
	sender.assertCount(t, 2)
	if errs := dialogs.errors(); len(errs) != 1 || errs[0] != got[1].Content {
		t.Fatalf("expected one error dialog, got %v", errs)
	}
}

func TestNotificationServiceIgnoresUnknownPayloads(t *testing.T) {
	messageBus := newTestMessageBus(t)
	sender := newCollectingNotificationSender()
	service := NewNotificationService(messageBus, nil, sender, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	messageBus.Publish(connectors.TopicJobResult, "not an entry")
	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{})
	sender.assertCount(t, 0)
}

func newTestMessageBus(t *testing.T) *bus.PubSubBus {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	messageBus := bus.New(logger)
	t.Cleanup(func() {
		messageBus.Close()
	})

	return messageBus
}

type collectingNotificationSender struct {
	mu            sync.Mutex
	notifications []notifications.Payload
	changes       chan struct{}
}

func newCollectingNotificationSender() *collectingNotificationSender {
	return &collectingNotificationSender{
		changes: make(chan struct{}, 1),
	}
}

func (s *collectingNotificationSender) Send(notification notifications.Payload) {
	s.mu.Lock()
	s.notifications = append(s.notifications, notification)
	s.mu.Unlock()

	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *collectingNotificationSender) snapshot() []notifications.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]notifications.Payload, len(s.notifications))
	copy(out, s.notifications)

	return out
}

func (s *collectingNotificationSender) waitForCount(t *testing.T, expected int) []notifications.Payload {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		current := s.snapshot()
		if len(current) >= expected {
			return current
		}
		select {
		case <-s.changes:
		case <-time.After(10 * time.Millisecond):
		}
	}

	t.Fatalf("timed out waiting for %d notifications", expected)

	return nil
}

func (s *collectingNotificationSender) assertCount(t *testing.T, expected int) {
	t.Helper()

	time.Sleep(100 * time.Millisecond)
	current := s.snapshot()
	if len(current) != expected {
		t.Fatalf("expected %d notifications, got %d", expected, len(current))
	}
}

type collectingDialogs struct {
	mu    sync.Mutex
	errs  []string
	infos []string
}

func (d *collectingDialogs) ShowError(_, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, message)
}

func (d *collectingDialogs) ShowInfo(_, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.infos = append(d.infos, message)
}

func (d *collectingDialogs) errors() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.errs...)
}
