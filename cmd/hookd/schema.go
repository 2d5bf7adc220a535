package main

import (
	"fmt"

	"github.com/spf13/cobra"

	internalconfig "github.com/smykla-labs/hookd/internal/config"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the configuration JSON schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := internalconfig.GenerateSchema()
		if err != nil {
			return err //nolint:wrapcheck // top-level CLI error
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
