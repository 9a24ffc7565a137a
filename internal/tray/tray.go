// Package tray runs the system tray menu for the notification runtime.
package tray

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getlantern/systray"

	"github.com/jenkinstray/jenkinstray/internal/app"
	"github.com/jenkinstray/jenkinstray/internal/bus"
	"github.com/jenkinstray/jenkinstray/internal/connectors"
	"github.com/jenkinstray/jenkinstray/internal/history"
	"github.com/jenkinstray/jenkinstray/internal/resources"
)

const recentSlots = 10

// Controller is the part of the runtime the tray menu drives.
type Controller interface {
	Connect() error
	Disconnect() error
	ClearHistory() error
}

type Dependencies struct {
	Ctx           context.Context
	Controller    Controller
	Bus           bus.MessageBus
	History       *history.Collection
	InitialStatus connectors.ConnectionStatus
	OnQuit        func()
	Logger        *slog.Logger
}

// Run blocks until the tray exits.
func Run(deps Dependencies) {
	if deps.Logger == nil {
		deps.Logger = slog.Default().With("component", "tray")
	}
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	systray.Run(func() { onReady(deps) }, func() {
		deps.Logger.Debug("tray exited")
	})
}

type menu struct {
	status     *systray.MenuItem
	connect    *systray.MenuItem
	disconnect *systray.MenuItem
	recent     *systray.MenuItem
	slots      []*systray.MenuItem
	clear      *systray.MenuItem
	quit       *systray.MenuItem
}

func onReady(deps Dependencies) {
	systray.SetTitle(app.Name)
	m := &menu{}
	m.status = systray.AddMenuItem("", "Connection state")
	m.status.Disable()
	systray.AddSeparator()
	m.connect = systray.AddMenuItem("Connect", "Connect to the Jenkins relay")
	m.disconnect = systray.AddMenuItem("Disconnect", "Stop listening")
	systray.AddSeparator()
	m.recent = systray.AddMenuItem("Recent builds", "Latest job results")
	for range recentSlots {
		slot := m.recent.AddSubMenuItem("", "")
		slot.Disable()
		slot.Hide()
		m.slots = append(m.slots, slot)
	}
	m.clear = systray.AddMenuItem("Clear history", "Remove stored job results")
	systray.AddSeparator()
	m.quit = systray.AddMenuItem("Quit", "Quit "+app.Name)

	applyStatus(m, deps.InitialStatus)
	applyHistory(m, deps.History)

	go loop(deps, m)
}

func loop(deps Dependencies, m *menu) {
	connSub := deps.Bus.Subscribe(connectors.TopicConnStatus)
	defer deps.Bus.Unsubscribe(connSub, connectors.TopicConnStatus)
	var changes <-chan struct{}
	if deps.History != nil {
		changes = deps.History.Changes()
	}
	actions := actionHandler{controller: deps.Controller, logger: deps.Logger}

	for {
		select {
		case <-deps.Ctx.Done():
			systray.Quit()
			return
		case <-m.connect.ClickedCh:
			actions.handle(actionConnect)
		case <-m.disconnect.ClickedCh:
			actions.handle(actionDisconnect)
		case <-m.clear.ClickedCh:
			actions.handle(actionClearHistory)
		case <-m.quit.ClickedCh:
			deps.Logger.Debug("system tray quit action invoked")
			if deps.OnQuit != nil {
				deps.OnQuit()
			}
			systray.Quit()
			return
		case raw, ok := <-connSub:
			if !ok {
				return
			}
			if status, ok := raw.(connectors.ConnectionStatus); ok {
				applyStatus(m, status)
			}
		case <-changes:
			applyHistory(m, deps.History)
		}
	}
}

func applyStatus(m *menu, status connectors.ConnectionStatus) {
	label := app.ConnectionStatusLabel(status)
	systray.SetIcon(resources.TrayIcon(status.State))
	systray.SetTooltip(label)
	m.status.SetTitle(label)

	canConnect, canDisconnect := menuAvailability(status.State)
	setEnabled(m.connect, canConnect)
	setEnabled(m.disconnect, canDisconnect)
}

func applyHistory(m *menu, entries *history.Collection) {
	var titles []string
	if entries != nil {
		titles = recentTitles(entries.Items(), len(m.slots))
	}
	for i, slot := range m.slots {
		if i < len(titles) {
			slot.SetTitle(titles[i])
			slot.Show()
			continue
		}
		slot.Hide()
	}
	setEnabled(m.clear, len(titles) > 0)
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
		return
	}
	item.Disable()
}

func menuAvailability(state connectors.ConnectionState) (canConnect, canDisconnect bool) {
	switch state {
	case connectors.ConnectionStateConnecting, connectors.ConnectionStateOpen:
		return false, true
	default:
		return true, false
	}
}

// recentTitles lists up to n entries, newest first.
func recentTitles(items []history.Entry, n int) []string {
	out := make([]string, 0, n)
	for i := len(items) - 1; i >= 0 && len(out) < n; i-- {
		e := items[i]
		out = append(out, fmt.Sprintf("%s: %s (%s)", e.Title(), e.Summary(), e.ReceivedAt.Format("15:04")))
	}

	return out
}
