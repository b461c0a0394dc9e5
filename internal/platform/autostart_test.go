package platform

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveLaunchCommandDropsBlankArgs(t *testing.T) {
	cmd, err := resolveLaunchCommand([]string{"-config", " ", " /home/pilot/.config/simlink/config.json "})
	if err != nil {
		t.Fatalf("resolve launch command: %v", err)
	}
	if !filepath.IsAbs(cmd.executable) {
		t.Fatalf("expected absolute executable, got %q", cmd.executable)
	}
	if len(cmd.args) != 2 || cmd.args[0] != "-config" || cmd.args[1] != "/home/pilot/.config/simlink/config.json" {
		t.Fatalf("unexpected args %#v", cmd.args)
	}
}

func TestLaunchCommandLine(t *testing.T) {
	cmd := launchCommand{executable: "/opt/simlink/simlinkd", args: []string{"-config", "a b.json"}}

	got := cmd.commandLine(func(s string) string {
		if strings.Contains(s, " ") {
			return "'" + s + "'"
		}

		return s
	})
	if want := "/opt/simlink/simlinkd -config 'a b.json'"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
