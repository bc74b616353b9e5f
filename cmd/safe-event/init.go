package main

import (
	"github.com/rbaliyan/safe-event/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a default config file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := config.WriteDefault(c.fs, c.configPath)
			if err != nil {
				return err
			}
			if !written {
				notice(cmd.OutOrStdout(), "%s already exists, skipping creation", c.configPath)
				return nil
			}
			success(cmd.OutOrStdout(), "created %s", c.configPath)
			return nil
		},
	}
}
