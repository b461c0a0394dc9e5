package app

import (
	"fmt"
	"log/slog"

	"github.com/skobkin/simlink/internal/config"
	"github.com/skobkin/simlink/internal/platform"
)

// AutostartSyncWarning is returned by SaveAndApplyConfig when the config was
// saved but the login registration could not be updated.
type AutostartSyncWarning struct {
	Err error
}

func (w *AutostartSyncWarning) Error() string {
	return "config saved, autostart not updated: " + w.Err.Error()
}

func (w *AutostartSyncWarning) Unwrap() error {
	return w.Err
}

// syncAutostart registers the daemon with the current config file so a login
// start reads the same settings.
func (r *Runtime) syncAutostart(cfg config.AppConfig, trigger string) error {
	if r.AutostartManager == nil {
		return nil
	}

	want := platform.AutostartConfig{
		Enabled: cfg.Autostart.Enabled,
		Args:    []string{"-config", r.Paths.ConfigFile},
	}
	if err := r.AutostartManager.Sync(want); err != nil {
		return fmt.Errorf("sync autostart on %s: %w", trigger, err)
	}
	slog.Debug("autostart synced", "trigger", trigger, "enabled", want.Enabled)

	return nil
}
