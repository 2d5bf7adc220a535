package main

import (
	"github.com/spf13/cobra"
)

var daemonizedFlag bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	Long: `Run the daemon in the current process. This is what "start" launches in
the background; running it directly is useful for debugging.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := bootstrap()
		if err != nil {
			return err
		}

		if daemonizedFlag {
			// The detached child logs to the file; stderr is the log file
			// already, but structured lines should carry the daemon fields.
			log, err := newFileLogger(env)
			if err != nil {
				return err
			}

			env.log = log
		}

		return env.manager().Run(cmd.Context()) //nolint:wrapcheck // top-level CLI error
	},
}

func init() {
	runCmd.Flags().BoolVar(
		&daemonizedFlag,
		"daemonized",
		false,
		"Internal: the process was detached by 'hookd start'",
	)
	_ = runCmd.Flags().MarkHidden("daemonized")

	rootCmd.AddCommand(runCmd)
}
