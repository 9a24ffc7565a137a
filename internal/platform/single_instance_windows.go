//go:build windows

package platform

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/windows"
)

// namedMutexLock holds a session-local mutex for as long as the process keeps the handle.
type namedMutexLock struct {
	name string

	once   sync.Once
	handle windows.Handle
}

func acquireInstanceLock(appID string) (InstanceLock, error) {
	name, err := mutexName(appID)
	if err != nil {
		return nil, err
	}
	ptr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("encode mutex name %q: %w", name, err)
	}

	handle, err := windows.CreateMutex(nil, false, ptr)
	switch {
	case errors.Is(err, windows.ERROR_ALREADY_EXISTS):
		if handle != 0 {
			_ = windows.CloseHandle(handle)
		}

		return nil, &AlreadyRunningError{AppID: appID}
	case err != nil:
		return nil, fmt.Errorf("create mutex %q: %w", name, err)
	}

	return &namedMutexLock{name: name, handle: handle}, nil
}

// mutexName returns a session-local name keyed by the current user SID.
func mutexName(appID string) (string, error) {
	user, err := windows.GetCurrentProcessToken().GetTokenUser()
	if err != nil {
		return "", fmt.Errorf("read process token user: %w", err)
	}

	return fmt.Sprintf(`Local\%s-%s`, appID, lockComponent(user.User.Sid.String(), "user")), nil
}

func (l *namedMutexLock) Release() error {
	if l == nil {
		return nil
	}

	var err error
	l.once.Do(func() {
		if cerr := windows.CloseHandle(l.handle); cerr != nil {
			err = fmt.Errorf("release mutex %q: %w", l.name, cerr)
		}
		l.handle = 0
	})

	return err
}
