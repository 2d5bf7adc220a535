package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smykla-labs/hookd/internal/daemon"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := bootstrap()
		if err != nil {
			return err
		}

		mgr := env.manager()

		if mgr.RunningPID() == 0 {
			fmt.Fprint(cmd.OutOrStdout(), daemon.StatusNotRunning(env.pctx.RepoIdentity))

			return nil
		}

		report, err := daemon.NewClient(env.pctx.SocketPath).Status()
		if err != nil {
			return err //nolint:wrapcheck // top-level CLI error
		}

		out, err := daemon.FormatStatus(report, statusFormat)
		if err != nil {
			return err //nolint:wrapcheck // top-level CLI error
		}

		fmt.Fprintln(cmd.OutOrStdout(), out)

		return nil
	},
}

func init() {
	statusCmd.Flags().StringVarP(
		&statusFormat,
		"output",
		"o",
		daemon.FormatText,
		"Output format (text, json, yaml)",
	)
	rootCmd.AddCommand(statusCmd)
}
