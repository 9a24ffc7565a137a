package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jenkinstray/jenkinstray/internal/config"
)

var forceInit bool

func init() {
	ConfigInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing configuration file.")

	ConfigCmd.AddCommand(ConfigShowCmd, ConfigValidateCmd, ConfigInitCmd)
	RootCmd.AddCommand(ConfigCmd)
}

var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the notifier configuration file",
}

var ConfigShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newLogManager()
		if err != nil {
			return err
		}
		defer func() { _ = mgr.Close() }()

		store, err := loadConfig(mgr.Logger("config"))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; showing defaults\n", err)
		}
		raw, err := config.Encode(store.Current())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(append(raw, '\n'))

		return err
	},
}

var ConfigValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Load(configPath); err != nil {
			return fmt.Errorf("invalid configuration %s: %w", configPath, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", configPath)

		return nil
	},
}

var ConfigInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !forceInit {
			return fmt.Errorf("%s already exists, use --force to overwrite", configPath)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", configPath, err)
		}

		cfg := config.Default()
		if err := config.Save(configPath, &cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)

		return nil
	},
}
