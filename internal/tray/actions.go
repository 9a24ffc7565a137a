package tray

import "log/slog"

type action int

const (
	actionConnect action = iota + 1
	actionDisconnect
	actionClearHistory
)

func (a action) String() string {
	switch a {
	case actionConnect:
		return "connect"
	case actionDisconnect:
		return "disconnect"
	case actionClearHistory:
		return "clear_history"
	default:
		return "unknown"
	}
}

type actionHandler struct {
	controller Controller
	logger     *slog.Logger
}

func (h actionHandler) handle(a action) {
	if h.controller == nil {
		return
	}
	var err error
	switch a {
	case actionConnect:
		err = h.controller.Connect()
	case actionDisconnect:
		err = h.controller.Disconnect()
	case actionClearHistory:
		err = h.controller.ClearHistory()
	default:
		return
	}
	if err != nil {
		h.logger.Warn("tray action failed", "action", a.String(), "error", err)
		return
	}
	h.logger.Debug("tray action done", "action", a.String())
}
