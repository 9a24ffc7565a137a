package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jenkinstray/jenkinstray/internal/config"
)

// Paths stores resolved runtime file locations for config, history and logs.
type Paths struct {
	RootDir    string
	ConfigFile string
	DBFile     string
	LogFile    string
}

// ResolvePaths keeps the config file at its well-known temp location and the rest under the user config dir.
func ResolvePaths() (Paths, error) {
	cfgRoot, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config dir: %w", err)
	}

	paths, err := PathsIn(filepath.Join(cfgRoot, Name))
	if err != nil {
		return Paths{}, err
	}
	paths.ConfigFile = config.DefaultPath()

	return paths, nil
}

// PathsIn places every runtime file under root.
func PathsIn(root string) (Paths, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create app dir: %w", err)
	}

	return Paths{
		RootDir:    root,
		ConfigFile: filepath.Join(root, config.Filename),
		DBFile:     filepath.Join(root, DBFilename),
		LogFile:    filepath.Join(root, LogFilename),
	}, nil
}
