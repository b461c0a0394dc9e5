//go:build linux

package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// desktopExecReserved lists characters that force quoting in an Exec key.
const desktopExecReserved = " \t\n\"'\\><~|&;$*?#()`"

// xdgAutostart manages $XDG_CONFIG_HOME/autostart/simlink.desktop.
type xdgAutostart struct{}

func newAutostartManager() AutostartManager {
	return xdgAutostart{}
}

func (xdgAutostart) Sync(cfg AutostartConfig) error {
	path, err := desktopEntryPath()
	if err != nil {
		return err
	}

	if !cfg.Enabled {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path, err)
		}

		return nil
	}

	cmd, err := resolveLaunchCommand(cfg.Args)
	if err != nil {
		return err
	}
	if err := replaceFile(path, []byte(desktopEntry(cmd.commandLine(quoteExecArg)))); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func desktopEntryPath() (string, error) {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		base = filepath.Join(home, ".config")
	}

	return filepath.Join(base, "autostart", autostartEntryName+".desktop"), nil
}

func desktopEntry(execLine string) string {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	for _, kv := range [][2]string{
		{"Type", "Application"},
		{"Name", "simlink"},
		{"Comment", "Simulator telemetry acquisition daemon"},
		{"Exec", execLine},
		{"Terminal", "false"},
		{"NoDisplay", "true"},
		{"X-GNOME-Autostart-enabled", "true"},
	} {
		fmt.Fprintf(&b, "%s=%s\n", kv[0], kv[1])
	}

	return b.String()
}

// quoteExecArg applies the desktop entry Exec rules: '%' is doubled, arguments
// with reserved characters are double quoted with '"', '`', '$' and '\'
// escaped, and backslashes are escaped once more for the string value.
func quoteExecArg(arg string) string {
	arg = strings.ReplaceAll(arg, "%", "%%")
	if arg != "" && !strings.ContainsAny(arg, desktopExecReserved) {
		return arg
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, r := range arg {
		switch r {
		case '"', '`', '$', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')

	return strings.ReplaceAll(b.String(), `\`, `\\`)
}

// replaceFile writes data next to path and renames it into place.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+autostartEntryName+"-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()

		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
