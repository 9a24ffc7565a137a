package connectors

import "time"

// ConnectionState describes the WebSocket client lifecycle state.
type ConnectionState string

const (
	ConnectionStateIdle       ConnectionState = "idle"
	ConnectionStateConnecting ConnectionState = "connecting"
	ConnectionStateOpen       ConnectionState = "open"
	ConnectionStateClosed     ConnectionState = "closed"
	ConnectionStateFailed     ConnectionState = "failed"
)

// ConnectionStatus is a bus event snapshot of the current client status.
type ConnectionStatus struct {
	State         ConnectionState
	Err           string
	TransportName string
	Target        string
	Attempt       int
	Timestamp     time.Time
}

// RawFrame carries frame diagnostics for debug views and logs.
type RawFrame struct {
	Kind    string
	Len     int
	Preview string
}
