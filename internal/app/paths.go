package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths stores resolved runtime file locations for user config, logs and the session catalog.
type Paths struct {
	RootDir    string
	ConfigFile string
	EnvFile    string
	DBFile     string
	LogFile    string
}

// ResolvePaths places every runtime file under the user config directory.
func ResolvePaths() (Paths, error) {
	cfgRoot, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config dir: %w", err)
	}

	return PathsIn(filepath.Join(cfgRoot, Name))
}

// PathsIn lays the runtime files out under root, creating it when missing.
func PathsIn(root string) (Paths, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create app config dir: %w", err)
	}

	return Paths{
		RootDir:    root,
		ConfigFile: filepath.Join(root, ConfigFilename),
		EnvFile:    filepath.Join(root, EnvFilename),
		DBFile:     filepath.Join(root, DBFilename),
		LogFile:    filepath.Join(root, LogFilename),
	}, nil
}

// WithConfigFile points the config at an explicit file, keeping the other
// paths. Relative paths are made absolute so autostart entries and instance
// locks see the same file regardless of the working directory.
func (p Paths) WithConfigFile(path string) Paths {
	if path == "" {
		return p
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p.ConfigFile = path

	return p
}
