package platform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInstanceAlreadyRunning indicates another process already owns the app instance lock.
var ErrInstanceAlreadyRunning = errors.New("instance already running")

// ErrInstanceLockUnsupported indicates the current platform has no lock backend implementation.
var ErrInstanceLockUnsupported = errors.New("instance lock unsupported")

// AlreadyRunningError reports the owner of a held instance lock. PID is 0 when unknown.
type AlreadyRunningError struct {
	AppID string
	PID   int
}

func (e *AlreadyRunningError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("%s: %s (pid %d)", ErrInstanceAlreadyRunning, e.AppID, e.PID)
	}

	return fmt.Sprintf("%s: %s", ErrInstanceAlreadyRunning, e.AppID)
}

func (e *AlreadyRunningError) Unwrap() error {
	return ErrInstanceAlreadyRunning
}

// InstanceLock represents an acquired single-instance lock.
type InstanceLock interface {
	Release() error
}

// AcquireInstanceLock takes the per-user lock for appID. Release it on shutdown.
func AcquireInstanceLock(appID string) (InstanceLock, error) {
	return acquireInstanceLock(lockComponent(appID, "app"))
}

// lockComponent keeps only characters safe for file and mutex names.
func lockComponent(raw, fallback string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(raw))

	cleaned = strings.Trim(cleaned, "_-.")
	if cleaned == "" {
		return fallback
	}

	return cleaned
}
