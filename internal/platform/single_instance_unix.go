//go:build unix

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// flockInstanceLock is an exclusive flock on <runtime dir>/<name>.lock. The
// kernel drops it when the process dies, so stale files never block startup.
type flockInstanceLock struct {
	file *os.File
}

func acquireInstanceLock(name string) (InstanceLock, error) {
	path, err := instanceLockPath(name)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- path is inside the per-user runtime directory.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open instance lock %s: %w", path, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		holder := lockHolderPID(file)
		_ = file.Close()
		if !errors.Is(err, syscall.EWOULDBLOCK) && !errors.Is(err, syscall.EAGAIN) {
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		if holder > 0 {
			return nil, fmt.Errorf("%w (pid %d)", ErrInstanceAlreadyRunning, holder)
		}

		return nil, ErrInstanceAlreadyRunning
	}

	if err := recordLockHolder(file, os.Getpid()); err != nil {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()

		return nil, err
	}

	return &flockInstanceLock{file: file}, nil
}

func (l *flockInstanceLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	file := l.file
	l.file = nil

	_ = file.Truncate(0)
	unlockErr := syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	closeErr := file.Close()
	if unlockErr != nil && !errors.Is(unlockErr, syscall.EBADF) {
		return fmt.Errorf("unlock instance lock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close instance lock: %w", closeErr)
	}

	return nil
}

func recordLockHolder(file *os.File, pid int) error {
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("truncate instance lock: %w", err)
	}
	if _, err := file.WriteAt([]byte(strconv.Itoa(pid)+"\n"), 0); err != nil {
		return fmt.Errorf("write instance lock holder: %w", err)
	}

	return nil
}

// lockHolderPID returns 0 when the file holds no readable PID.
func lockHolderPID(file *os.File) int {
	buf := make([]byte, 32)
	n, _ := file.ReadAt(buf, 0)
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil || pid <= 0 {
		return 0
	}

	return pid
}

func instanceLockPath(name string) (string, error) {
	dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "run-"+strconv.Itoa(os.Getuid()))
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create runtime dir %s: %w", dir, err)
	}

	return filepath.Join(dir, name+".lock"), nil
}
