package cmd

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jenkinstray/jenkinstray/internal/app"
	"github.com/jenkinstray/jenkinstray/internal/config"
	"github.com/jenkinstray/jenkinstray/internal/logging"
)

var (
	configPath string
	dataDir    string
	logLevel   string
)

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to ApplicationConfiguration.xml.")
	RootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory holding the history database. Defaults to the tray app data dir.")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error.")
}

var RootCmd = &cobra.Command{
	Use:          "jtctl",
	Short:        "Inspect and exercise the Jenkins tray notifier",
	Version:      app.Version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return errors.New("please choose a command")
	},
}

func newLogManager() (*logging.Manager, error) {
	mgr := logging.NewManager()
	if err := mgr.Configure(config.LoggingConfiguration{Level: logLevel}, ""); err != nil {
		return nil, err
	}

	return mgr, nil
}

func resolvePaths() (app.Paths, error) {
	var (
		paths app.Paths
		err   error
	)
	if dataDir != "" {
		paths, err = app.PathsIn(dataDir)
	} else {
		paths, err = app.ResolvePaths()
	}
	if err != nil {
		return app.Paths{}, err
	}
	paths.ConfigFile = configPath

	return paths, nil
}

func loadConfig(logger *slog.Logger) (*config.Store, error) {
	store := config.NewStore(configPath, logger)

	return store, store.LoadCurrent("")
}
