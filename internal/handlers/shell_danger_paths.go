package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"
	"github.com/go-viper/mapstructure/v2"

	"github.com/smykla-labs/hookd/internal/registry"
	"github.com/smykla-labs/hookd/pkg/handler"
	"github.com/smykla-labs/hookd/pkg/hook"
	"github.com/smykla-labs/hookd/pkg/parser"
)

// destructiveCommands are commands whose path arguments get checked
// against the protected patterns.
var destructiveCommands = map[string]bool{
	"rm":       true,
	"shred":    true,
	"truncate": true,
	"unlink":   true,
}

// ShellDangerPaths denies destructive commands aimed at protected paths.
// It shares its option map with shell-danger, so one protected_paths list
// drives both handlers.
type ShellDangerPaths struct {
	handler.Base

	parser   *parser.BashParser
	patterns []string
}

// NewShellDangerPaths constructs the handler from the shared options.
//
//nolint:ireturn // registry factory contract
func NewShellDangerPaths(deps registry.Deps) (handler.Handler, error) {
	opts := defaultShellDangerOptions()
	if err := mapstructure.Decode(deps.Options, &opts); err != nil {
		return nil, errors.Wrap(err, "invalid shell-danger-paths options")
	}

	return &ShellDangerPaths{
		Base: handler.NewBase(handler.Descriptor{
			Key:               KeyShellDangerPaths,
			Priority:          priorityShellDangerPaths,
			Terminal:          true,
			Tags:              []string{"shell", "destructive"},
			SharesOptionsWith: KeyShellDanger,
		}, deps.Log),
		parser:   parser.NewBashParser(),
		patterns: opts.ProtectedPaths,
	}, nil
}

// Matches applies to Bash commands naming a destructive command.
func (h *ShellDangerPaths) Matches(event *hook.Event) bool {
	if !event.IsBashTool() {
		return false
	}

	for name := range destructiveCommands {
		if strings.Contains(event.GetCommand(), name) {
			return true
		}
	}

	return false
}

// Handle denies when a destructive command targets a protected path.
func (h *ShellDangerPaths) Handle(_ context.Context, event *hook.Event) (*handler.Result, error) {
	commands, err := h.parser.Parse(event.GetCommand())
	if err != nil {
		return nil, err
	}

	for _, cmd := range commands {
		if !destructiveCommands[cmd.Name] {
			continue
		}

		for _, target := range cmd.Positionals() {
			if pattern := h.matchProtected(target); pattern != "" {
				return handler.Deny(fmt.Sprintf(
					"%s targets protected path %q (pattern %q)",
					cmd.Name, target, pattern)), nil
			}
		}
	}

	return handler.Allow(), nil
}

// matchProtected returns the first pattern the target falls under, or "".
func (h *ShellDangerPaths) matchProtected(target string) string {
	normalized := normalizePath(target)

	for _, pattern := range h.patterns {
		p := normalizePath(pattern)

		if ok, _ := doublestar.Match(p, normalized); ok {
			return pattern
		}

		// A pattern like /etc/** also protects /etc itself.
		if base := strings.TrimSuffix(p, "/**"); base != p && base == normalized {
			return pattern
		}
	}

	return ""
}

// normalizePath expands a leading ~ and trims trailing slashes so targets
// and patterns compare in the same form.
func normalizePath(p string) string {
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}

	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}

	return p
}

// TestCases declares the handler's acceptance cases.
func (h *ShellDangerPaths) TestCases() []handler.TestCase {
	bash := func(cmd string) *hook.Event {
		return &hook.Event{
			Type:      hook.EventTypePreToolUse,
			ToolName:  "Bash",
			ToolInput: hook.ToolInput{Command: cmd},
		}
	}

	return []handler.TestCase{
		{
			Name:         "denies rm under /etc",
			Event:        bash("rm -rf /etc/nginx"),
			WantMatch:    true,
			WantDecision: hook.DecisionDeny,
		},
		{
			Name:         "denies shred of ssh keys",
			Event:        bash("shred ~/.ssh/id_ed25519"),
			WantMatch:    true,
			WantDecision: hook.DecisionDeny,
		},
		{
			Name:         "allows rm inside the project",
			Event:        bash("rm -rf ./node_modules"),
			WantMatch:    true,
			WantDecision: hook.DecisionAllow,
		},
		{
			Name:      "ignores commands without destructive verbs",
			Event:     bash("cat /etc/hosts"),
			WantMatch: false,
		},
	}
}
