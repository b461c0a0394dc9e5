//go:build windows

package platform

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

// mutexInstanceLock holds a named mutex in the session-local namespace.
type mutexInstanceLock struct {
	handle windows.Handle
}

func acquireInstanceLock(name string) (InstanceLock, error) {
	sid, err := currentUserSID()
	if err != nil {
		return nil, err
	}
	mutexName := `Local\` + name + "-" + lockNameComponent(sid)
	namePtr, err := windows.UTF16PtrFromString(mutexName)
	if err != nil {
		return nil, fmt.Errorf("encode mutex name %q: %w", mutexName, err)
	}

	handle, err := windows.CreateMutex(nil, false, namePtr)
	switch {
	case errors.Is(err, windows.ERROR_ALREADY_EXISTS):
		closeMutex(handle)

		return nil, ErrInstanceAlreadyRunning
	case err != nil:
		closeMutex(handle)

		return nil, fmt.Errorf("create mutex %q: %w", mutexName, err)
	}

	return &mutexInstanceLock{handle: handle}, nil
}

func (l *mutexInstanceLock) Release() error {
	if l == nil || l.handle == 0 {
		return nil
	}
	handle := l.handle
	l.handle = 0
	if err := windows.CloseHandle(handle); err != nil {
		return fmt.Errorf("close instance mutex: %w", err)
	}

	return nil
}

func closeMutex(handle windows.Handle) {
	if handle != 0 {
		_ = windows.CloseHandle(handle)
	}
}

func currentUserSID() (string, error) {
	user, err := windows.GetCurrentProcessToken().GetTokenUser()
	if err != nil {
		return "", fmt.Errorf("read process token user: %w", err)
	}

	return user.User.Sid.String(), nil
}
