//go:build windows

package platform

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/windows/registry"
)

const runKeyPath = `Software\Microsoft\Windows\CurrentVersion\Run`

// runKeyAutostart stores the launch command as a value under HKCU Run.
type runKeyAutostart struct{}

func newAutostartManager() AutostartManager {
	return runKeyAutostart{}
}

func (runKeyAutostart) Sync(cfg AutostartConfig) error {
	key, _, err := registry.CreateKey(registry.CURRENT_USER, runKeyPath, registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open HKCU\\%s: %w", runKeyPath, err)
	}
	defer func() {
		_ = key.Close()
	}()

	if !cfg.Enabled {
		if err := key.DeleteValue(autostartEntryName); err != nil && !errors.Is(err, registry.ErrNotExist) {
			return fmt.Errorf("delete run value %q: %w", autostartEntryName, err)
		}

		return nil
	}

	cmd, err := resolveLaunchCommand(cfg.Args)
	if err != nil {
		return err
	}
	if err := key.SetStringValue(autostartEntryName, cmd.commandLine(syscall.EscapeArg)); err != nil {
		return fmt.Errorf("set run value %q: %w", autostartEntryName, err)
	}

	return nil
}
