package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/brbranch/kvstore/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				defaultPath, err := config.GetDefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}

			expanded, err := config.ExpandTilde(path)
			if err != nil {
				return err
			}
			if _, err := os.Stat(expanded); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", expanded)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to stat config file: %w", err)
			}

			manager, err := config.NewManager(expanded)
			if err != nil {
				return err
			}
			if err := manager.Save(); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Config written: %s\n", expanded)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "Config file path (default: ~/.kvstore/config.yaml)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
