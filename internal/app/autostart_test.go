package app

import (
	"errors"
	"sync"
	"testing"

	"github.com/skobkin/simlink/internal/platform"
)

func TestAutostartSyncWarningError(t *testing.T) {
	warning := &AutostartSyncWarning{Err: errors.New("boom")}
	if got := warning.Error(); got != "config saved, autostart not updated: boom" {
		t.Fatalf("unexpected warning error text: %q", got)
	}
	if !errors.Is(warning, warning.Err) {
		t.Fatalf("expected warning to unwrap original error")
	}
}

type recordingAutostart struct {
	mu    sync.Mutex
	calls []platform.AutostartConfig
	err   error
}

func (r *recordingAutostart) Sync(cfg platform.AutostartConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cfg)

	return r.err
}

func (r *recordingAutostart) snapshot() []platform.AutostartConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]platform.AutostartConfig(nil), r.calls...)
}

func TestRuntimeSyncsAutostartOnStartupAndChange(t *testing.T) {
	rt := newTestRuntime(t, dummyConnector)
	autostart, ok := rt.AutostartManager.(*recordingAutostart)
	if !ok {
		t.Fatalf("expected injected autostart manager, got %T", rt.AutostartManager)
	}

	calls := autostart.snapshot()
	if len(calls) != 1 || calls[0].Enabled {
		t.Fatalf("expected one disabled sync on startup, got %+v", calls)
	}
	if len(calls[0].Args) != 2 || calls[0].Args[0] != "-config" || calls[0].Args[1] != rt.Paths.ConfigFile {
		t.Fatalf("expected autostart to point at the config file, got %#v", calls[0].Args)
	}

	next := rt.CurrentConfig()
	next.Acquisition.UpdateRateMs = 100
	if err := rt.SaveAndApplyConfig(next); err != nil {
		t.Fatalf("save unrelated change: %v", err)
	}
	if got := len(autostart.snapshot()); got != 1 {
		t.Fatalf("unrelated change must not resync autostart, got %d calls", got)
	}

	autostart.mu.Lock()
	autostart.err = errors.New("read-only home")
	autostart.mu.Unlock()
	next.Autostart.Enabled = true
	err := rt.SaveAndApplyConfig(next)
	var warning *AutostartSyncWarning
	if !errors.As(err, &warning) {
		t.Fatalf("expected autostart warning, got %v", err)
	}
	if !rt.CurrentConfig().Autostart.Enabled {
		t.Fatalf("config must be saved even when autostart sync fails")
	}
	if calls := autostart.snapshot(); len(calls) != 2 || !calls[1].Enabled {
		t.Fatalf("expected enabled sync, got %+v", calls)
	}
}
