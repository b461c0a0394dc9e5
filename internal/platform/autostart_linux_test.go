//go:build linux

package platform

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestXDGAutostartLifecycle(t *testing.T) {
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", root)
	entryPath := filepath.Join(root, "autostart", "simlink.desktop")

	mgr := newAutostartManager()
	if err := mgr.Sync(AutostartConfig{Enabled: true, Args: []string{"-config", "/tmp/simlink.json"}}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	// #nosec G304 -- path is inside the test temp dir.
	raw, err := os.ReadFile(entryPath)
	if err != nil {
		t.Fatalf("read desktop entry: %v", err)
	}
	entry := string(raw)
	if !strings.HasPrefix(entry, "[Desktop Entry]\n") || !strings.Contains(entry, "\nName=simlink\n") {
		t.Fatalf("unexpected desktop entry %q", entry)
	}
	if !strings.Contains(entry, " -config /tmp/simlink.json\n") {
		t.Fatalf("expected config argument on the Exec line, got %q", entry)
	}

	if err := mgr.Sync(AutostartConfig{Enabled: true}); err != nil {
		t.Fatalf("re-enable without args: %v", err)
	}
	// #nosec G304 -- path is inside the test temp dir.
	raw, err = os.ReadFile(entryPath)
	if err != nil {
		t.Fatalf("read rewritten entry: %v", err)
	}
	if strings.Contains(string(raw), "-config") {
		t.Fatalf("expected args to be replaced, got %q", string(raw))
	}

	if err := mgr.Sync(AutostartConfig{}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := os.Stat(entryPath); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected entry to be removed, stat err: %v", err)
	}
	if err := mgr.Sync(AutostartConfig{}); err != nil {
		t.Fatalf("disabling twice must be a no-op: %v", err)
	}
}

func TestDesktopEntryPathFallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)

	path, err := desktopEntryPath()
	if err != nil {
		t.Fatalf("resolve path: %v", err)
	}
	if want := filepath.Join(home, ".config", "autostart", "simlink.desktop"); path != want {
		t.Fatalf("expected %q, got %q", want, path)
	}
}

func TestQuoteExecArg(t *testing.T) {
	tests := map[string]string{
		"plain":               "plain",
		"/data/my flight.slr": `"/data/my flight.slr"`,
		"":                    `""`,
		"50%":                 "50%%",
		`a"b`:                 `"a\\"b"`,
		"$HOME":               `"\\$HOME"`,
	}
	for in, want := range tests {
		if got := quoteExecArg(in); got != want {
			t.Fatalf("quoteExecArg(%q) = %q, want %q", in, got, want)
		}
	}
}
