package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/smykla-labs/hookd/internal/daemon"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := bootstrap()
		if err != nil {
			return err
		}

		pid, err := env.manager().Start()
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			fmt.Fprintf(cmd.OutOrStdout(), "hookd already running (pid %d)\n", pid)

			return nil
		}

		if err != nil {
			return err //nolint:wrapcheck // top-level CLI error
		}

		fmt.Fprintf(cmd.OutOrStdout(), "hookd started (pid %d)\n", pid)
		fmt.Fprintf(cmd.OutOrStdout(), "socket: %s\n", env.pctx.SocketPath)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
