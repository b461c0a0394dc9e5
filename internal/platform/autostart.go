package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const autostartEntryName = "simlink"

// ErrAutostartUnsupported is returned when enabling autostart on a platform
// without a login item backend.
var ErrAutostartUnsupported = errors.New("autostart unsupported")

// AutostartConfig describes the login registration of the daemon. Args are
// passed to the current executable when the session starts.
type AutostartConfig struct {
	Enabled bool
	Args    []string
}

// AutostartManager registers or removes the daemon from the user's login items.
type AutostartManager interface {
	Sync(cfg AutostartConfig) error
}

func NewAutostartManager() AutostartManager {
	return newAutostartManager()
}

// launchCommand is what the login session runs.
type launchCommand struct {
	executable string
	args       []string
}

func resolveLaunchCommand(args []string) (launchCommand, error) {
	exe, err := os.Executable()
	if err != nil {
		return launchCommand{}, fmt.Errorf("resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	if exe, err = filepath.Abs(exe); err != nil {
		return launchCommand{}, fmt.Errorf("resolve executable: %w", err)
	}

	cmd := launchCommand{executable: exe}
	for _, arg := range args {
		if arg = strings.TrimSpace(arg); arg != "" {
			cmd.args = append(cmd.args, arg)
		}
	}

	return cmd, nil
}

// commandLine joins the executable and its arguments, each passed through quote.
func (c launchCommand) commandLine(quote func(string) string) string {
	fields := make([]string, 0, len(c.args)+1)
	fields = append(fields, quote(c.executable))
	for _, arg := range c.args {
		fields = append(fields, quote(arg))
	}

	return strings.Join(fields, " ")
}
