package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cypherify/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create, show and check the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if force {
				if err := config.SaveConfig(config.DefaultConfig(), a.configPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", a.configPath)
				return nil
			}
			_, created, err := config.LoadOrCreate(a.configPath)
			if err != nil {
				return err
			}
			if !created {
				return fmt.Errorf("%s already exists (use --force to overwrite)", a.configPath)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", a.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration; the teacher API key is never printed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ext string
			switch format {
			case "toml", "json", "yaml":
				ext = "." + format
			default:
				return fmt.Errorf("unknown format %q (toml, json, yaml)", format)
			}
			data, err := config.EncodeConfig(a.cfg, ext)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	showCmd.Flags().StringVar(&format, "format", "toml", "output format: toml, json or yaml")

	cmd.AddCommand(
		initCmd,
		showCmd,
		&cobra.Command{
			Use:   "validate",
			Short: "Check the configuration file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				// setup has already loaded and validated the file.
				if _, err := os.Stat(a.configPath); errors.Is(err, os.ErrNotExist) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s does not exist; defaults are in use\n", a.configPath)
				}
				if _, err := a.cfg.ClassicalSettings(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path in use",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), a.configPath)
			},
		},
	)
	return cmd
}
