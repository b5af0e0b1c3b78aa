package main

import (
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "config",
		Short: "print the effective configuration, including default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := *config
			c.Tracker.Token = hide(c.Tracker.Token)
			c.Store.RedisPassword = hide(c.Store.RedisPassword)

			return c.Marshal(cmd.OutOrStdout())
		},
	}

	return &cmd
}
