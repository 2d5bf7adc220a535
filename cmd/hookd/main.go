// Package main provides the CLI entry point for hookd.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	internalconfig "github.com/smykla-labs/hookd/internal/config"
	"github.com/smykla-labs/hookd/internal/daemon"
	"github.com/smykla-labs/hookd/internal/handlers"
	"github.com/smykla-labs/hookd/internal/procctx"
	"github.com/smykla-labs/hookd/pkg/config"
	"github.com/smykla-labs/hookd/pkg/logger"
)

var (
	projectFlag string
	debugFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "hookd",
	Short: "Per-project policy daemon for agent hook events",
	Long: `hookd is a persistent per-project daemon that receives hook events from
an AI coding agent over a Unix socket and answers with allow, deny, or
ask decisions plus advisory context.`,
	SilenceUsage:      true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&projectFlag,
		"project",
		"p",
		"",
		"Project root directory (default: current directory)",
	)
	rootCmd.PersistentFlags().BoolVar(
		&debugFlag,
		"debug",
		false,
		"Enable debug logging",
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootEnv is everything a subcommand needs after configuration has been
// loaded and validated.
type bootEnv struct {
	pctx *procctx.Context
	doc  *config.Document
	log  logger.Logger
}

// bootstrap loads, validates, and resolves everything up to (but not
// including) serving. Warnings go to stderr; errors abort the command.
func bootstrap() (*bootEnv, error) {
	root := projectFlag
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err //nolint:wrapcheck // top-level CLI error
		}

		root = wd
	}

	loader, err := internalconfig.NewLoader(root)
	if err != nil {
		return nil, err //nolint:wrapcheck // top-level CLI error
	}

	doc, raw, err := loader.Load()
	if err != nil {
		return nil, err //nolint:wrapcheck // top-level CLI error
	}

	result := internalconfig.NewValidator().Validate(doc, raw)
	for _, warning := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}

	if err := result.Err(); err != nil {
		return nil, err //nolint:wrapcheck // top-level CLI error
	}

	log := logger.NewFileLoggerWithWriter(os.Stderr, debugFlag || doc.GetDaemon().IsDebug())

	pctx, err := procctx.New(root, log,
		procctx.WithSocketPath(doc.GetDaemon().SocketPath))
	if err != nil {
		return nil, err //nolint:wrapcheck // top-level CLI error
	}

	return &bootEnv{pctx: pctx, doc: doc, log: log}, nil
}

// newFileLogger opens the structured log file for the serving process.
//
//nolint:ireturn // logger interface by design
func newFileLogger(env *bootEnv) (logger.Logger, error) {
	log, err := logger.NewFileLogger(
		env.pctx.LogFile,
		debugFlag || env.doc.GetDaemon().IsDebug(),
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // top-level CLI error
	}

	return log.With("project", env.pctx.RepoIdentity), nil
}

// manager builds the lifecycle manager for a bootstrapped environment.
func (b *bootEnv) manager() *daemon.Manager {
	return daemon.NewManager(b.pctx, b.doc, handlers.Builtins(), buildVersion(), b.log)
}
