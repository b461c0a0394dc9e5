//go:build !linux && !windows

package platform

import (
	"fmt"
	"runtime"
)

type noAutostart struct{}

func newAutostartManager() AutostartManager {
	return noAutostart{}
}

// Sync only fails when asked to enable; disabling is always satisfied.
func (noAutostart) Sync(cfg AutostartConfig) error {
	if !cfg.Enabled {
		return nil
	}

	return fmt.Errorf("%w on %s", ErrAutostartUnsupported, runtime.GOOS)
}
