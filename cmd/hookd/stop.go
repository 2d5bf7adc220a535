package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/smykla-labs/hookd/internal/daemon"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := bootstrap()
		if err != nil {
			return err
		}

		err = env.manager().Stop()
		if errors.Is(err, daemon.ErrNotRunning) {
			fmt.Fprintln(cmd.OutOrStdout(), "hookd is not running")

			return nil
		}

		if err != nil {
			return err //nolint:wrapcheck // top-level CLI error
		}

		fmt.Fprintln(cmd.OutOrStdout(), "hookd stopped")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
