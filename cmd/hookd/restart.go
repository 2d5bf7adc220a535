package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the daemon, reloading configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := bootstrap()
		if err != nil {
			return err
		}

		pid, err := env.manager().Restart()
		if err != nil {
			return err //nolint:wrapcheck // top-level CLI error
		}

		fmt.Fprintf(cmd.OutOrStdout(), "hookd restarted (pid %d)\n", pid)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(restartCmd)
}
