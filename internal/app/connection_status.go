package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/jenkinstray/jenkinstray/internal/backoff"
	"github.com/jenkinstray/jenkinstray/internal/config"
	"github.com/jenkinstray/jenkinstray/internal/connectors"
	"github.com/jenkinstray/jenkinstray/internal/wsclient"
)

const (
	exponentialRetryFactor   = 2
	maxExponentialRetryDelay = time.Minute
)

// EndpointFromConfig builds the client endpoint for the configured Jenkins relay.
func EndpointFromConfig(cfg config.AppConfig) wsclient.Endpoint {
	return wsclient.Endpoint{
		URI:        strings.TrimSpace(cfg.Notify.TargetURI),
		MaxRetries: cfg.Connection.MaxRetries,
	}
}

func BackoffFromConfig(cfg config.ConnectionConfiguration) backoff.Backoff {
	if cfg.Backoff == config.BackoffExponential {
		return backoff.Exponential(cfg.Delay(), exponentialRetryFactor, maxExponentialRetryDelay)
	}

	return backoff.Constant(cfg.Delay())
}

func ConnectionStatusFromConfig(cfg config.AppConfig) connectors.ConnectionStatus {
	return connectors.ConnectionStatus{
		State:         connectors.ConnectionStateIdle,
		TransportName: "websocket",
		Target:        strings.TrimSpace(cfg.Notify.TargetURI),
	}
}

// ConnectionStatusLabel renders a one-line status for tooltips and CLI output.
func ConnectionStatusLabel(status connectors.ConnectionStatus) string {
	state := string(status.State)
	if state == "" {
		state = string(connectors.ConnectionStateIdle)
	}
	label := fmt.Sprintf("%s: %s", Name, state)
	if target := strings.TrimSpace(status.Target); target != "" {
		label = fmt.Sprintf("%s (%s)", label, target)
	}
	if status.State == connectors.ConnectionStateConnecting && status.Attempt > 0 {
		label = fmt.Sprintf("%s, retry %d", label, status.Attempt)
	}
	if errText := strings.TrimSpace(status.Err); errText != "" && status.State == connectors.ConnectionStateFailed {
		label = fmt.Sprintf("%s: %s", label, errText)
	}

	return label
}
