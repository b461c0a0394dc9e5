package platform

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
)

var (
	// ErrInstanceAlreadyRunning reports that another daemon holds the lock.
	ErrInstanceAlreadyRunning = errors.New("instance already running")
	// ErrInstanceLockUnsupported reports a platform without a lock backend.
	ErrInstanceLockUnsupported = errors.New("instance lock unsupported")
)

// InstanceLock is held for the lifetime of one daemon.
type InstanceLock interface {
	Release() error
}

// AcquireInstanceLock takes the per-user lock for appID. A non-empty scope,
// usually the config file path, gives each configuration its own lock so
// daemons reading different simulators can run side by side.
func AcquireInstanceLock(appID, scope string) (InstanceLock, error) {
	return acquireInstanceLock(instanceLockName(appID, scope))
}

func instanceLockName(appID, scope string) string {
	name := lockNameComponent(appID)
	if name == "" {
		name = "app"
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return name
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(scope))

	return fmt.Sprintf("%s-%08x", name, h.Sum32())
}

// lockNameComponent lowercases raw and keeps ASCII letters, digits, '-' and '_'.
func lockNameComponent(raw string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(raw))

	return strings.Trim(mapped, "_-")
}
