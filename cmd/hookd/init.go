package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	internalconfig "github.com/smykla-labs/hookd/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default project configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		root := projectFlag
		if root == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err //nolint:wrapcheck // top-level CLI error
			}

			root = wd
		}

		path, err := internalconfig.WriteDefault(root)
		if errors.Is(err, internalconfig.ErrConfigExists) {
			fmt.Fprintf(cmd.OutOrStdout(), "config already exists: %s\n", path)

			return nil
		}

		if err != nil {
			return err //nolint:wrapcheck // top-level CLI error
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
