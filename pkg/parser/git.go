package parser

import (
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotGitCommand is returned when the command is not a git command.
	ErrNotGitCommand = errors.New("not a git command")

	// ErrNoSubcommand is returned when a git command has no subcommand.
	ErrNoSubcommand = errors.New("git command has no subcommand")
)

// GitCommand is a parsed git invocation.
type GitCommand struct {
	// Subcommand is the git subcommand ("push", "commit", ...).
	Subcommand string

	// Flags are every flag, with combined short groups split ("-fu"
	// becomes "-f" and "-u").
	Flags []string

	// Args are the positional arguments after the subcommand.
	Args []string
}

// globalFlagsWithValues are git's pre-subcommand flags that consume the
// next argument.
var globalFlagsWithValues = map[string]bool{
	"-C":             true,
	"-c":             true,
	"--git-dir":      true,
	"--work-tree":    true,
	"--namespace":    true,
	"--exec-path":    true,
	"--config-env":   true,
	"--super-prefix": true,
}

// ParseGitCommand interprets a Command as a git invocation.
func ParseGitCommand(cmd Command) (*GitCommand, error) {
	if cmd.Name != "git" {
		return nil, ErrNotGitCommand
	}

	args, err := skipGlobalFlags(cmd.Args)
	if err != nil {
		return nil, err
	}

	out := &GitCommand{Subcommand: args[0]}

	for _, arg := range args[1:] {
		switch {
		case strings.HasPrefix(arg, "--"):
			out.Flags = append(out.Flags, arg)
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			for _, ch := range arg[1:] {
				out.Flags = append(out.Flags, "-"+string(ch))
			}
		default:
			out.Args = append(out.Args, arg)
		}
	}

	return out, nil
}

// skipGlobalFlags advances past pre-subcommand global flags and returns
// the remainder starting at the subcommand.
func skipGlobalFlags(args []string) ([]string, error) {
	i := 0

	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return args[i:], nil
		}

		if strings.Contains(arg, "=") {
			i++

			continue
		}

		if globalFlagsWithValues[arg] {
			i += 2

			continue
		}

		i++
	}

	return nil, ErrNoSubcommand
}

// HasFlag reports whether the parsed command carries any of the flags,
// matching "--flag=value" forms against their bare "--flag" name.
func (g *GitCommand) HasFlag(flags ...string) bool {
	for _, have := range g.Flags {
		name := have
		if idx := strings.Index(name, "="); idx >= 0 {
			name = name[:idx]
		}

		for _, want := range flags {
			if name == want {
				return true
			}
		}
	}

	return false
}
