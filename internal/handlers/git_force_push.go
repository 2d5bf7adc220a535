package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"
	"github.com/go-viper/mapstructure/v2"

	"github.com/smykla-labs/hookd/internal/registry"
	"github.com/smykla-labs/hookd/pkg/handler"
	"github.com/smykla-labs/hookd/pkg/hook"
	"github.com/smykla-labs/hookd/pkg/parser"
)

// gitForcePushOptions configures the git-force-push handler.
type gitForcePushOptions struct {
	// ProtectedBranches are glob patterns for branches that must not be
	// force-pushed.
	ProtectedBranches []string `mapstructure:"protected_branches"`

	// AllowForceWithLease permits --force-with-lease pushes even to
	// protected branches.
	AllowForceWithLease bool `mapstructure:"allow_force_with_lease"`
}

func defaultGitForcePushOptions() gitForcePushOptions {
	return gitForcePushOptions{
		ProtectedBranches: []string{"main", "master", "release/*"},
	}
}

// GitForcePush denies force pushes to protected branches. Terminal: a
// deny here halts the chain.
type GitForcePush struct {
	handler.Base

	parser *parser.BashParser
	opts   gitForcePushOptions
}

// NewGitForcePush constructs the handler from its resolved options.
//
//nolint:ireturn // registry factory contract
func NewGitForcePush(deps registry.Deps) (handler.Handler, error) {
	opts := defaultGitForcePushOptions()
	if err := mapstructure.Decode(deps.Options, &opts); err != nil {
		return nil, errors.Wrap(err, "invalid git-force-push options")
	}

	return &GitForcePush{
		Base: handler.NewBase(handler.Descriptor{
			Key:      KeyGitForcePush,
			Priority: priorityGitForcePush,
			Terminal: true,
			Tags:     []string{"git", "destructive"},
		}, deps.Log),
		parser: parser.NewBashParser(),
		opts:   opts,
	}, nil
}

// Matches applies to Bash commands that mention git at all; the precise
// check happens in Handle on the parsed AST.
func (h *GitForcePush) Matches(event *hook.Event) bool {
	return event.IsBashTool() && strings.Contains(event.GetCommand(), "git")
}

// Handle parses the command and denies force pushes aimed at protected
// branches. A command that fails to parse is left to other handlers;
// failing open here is the per-request contract, and the parse error is
// surfaced to the engine.
func (h *GitForcePush) Handle(_ context.Context, event *hook.Event) (*handler.Result, error) {
	commands, err := h.parser.Parse(event.GetCommand())
	if err != nil {
		return nil, err
	}

	for _, cmd := range parser.Filter(commands, "git") {
		gitCmd, err := parser.ParseGitCommand(cmd)
		if err != nil {
			continue
		}

		if reason := h.checkPush(gitCmd); reason != "" {
			return handler.Deny(reason), nil
		}
	}

	return handler.Allow(), nil
}

// checkPush returns a denial reason for a forbidden force push, or "".
func (h *GitForcePush) checkPush(cmd *parser.GitCommand) string {
	if cmd.Subcommand != "push" {
		return ""
	}

	forced := cmd.HasFlag("-f", "--force")
	leased := cmd.HasFlag("--force-with-lease", "--force-if-includes")

	if !forced && !leased {
		return ""
	}

	if !forced && leased && h.opts.AllowForceWithLease {
		return ""
	}

	branch := pushTargetBranch(cmd)
	if branch == "" {
		// Bare "git push --force" resolves the branch remotely; without a
		// name to clear against the patterns it is treated as protected.
		return fmt.Sprintf(
			"force push without an explicit branch; protected patterns: %s. "+
				"Name the target branch explicitly if it is not protected",
			strings.Join(h.opts.ProtectedBranches, ", "))
	}

	for _, pattern := range h.opts.ProtectedBranches {
		if ok, _ := doublestar.Match(pattern, branch); ok {
			return fmt.Sprintf(
				"force push to protected branch %q (pattern %q)", branch, pattern)
		}
	}

	return ""
}

// pushTargetBranch extracts the branch name from the push refspec. For
// "src:dst" refspecs the destination side is what matters.
func pushTargetBranch(cmd *parser.GitCommand) string {
	// Positionals are [remote, refspec...]; a single positional is just
	// the remote.
	if len(cmd.Args) < 2 {
		return ""
	}

	refspec := cmd.Args[1]
	if idx := strings.LastIndex(refspec, ":"); idx >= 0 {
		refspec = refspec[idx+1:]
	}

	return strings.TrimPrefix(refspec, "refs/heads/")
}

// TestCases declares the handler's acceptance cases.
func (h *GitForcePush) TestCases() []handler.TestCase {
	bash := func(cmd string) *hook.Event {
		return &hook.Event{
			Type:      hook.EventTypePreToolUse,
			ToolName:  "Bash",
			ToolInput: hook.ToolInput{Command: cmd},
		}
	}

	return []handler.TestCase{
		{
			Name:         "denies force push to main",
			Event:        bash("git push --force origin main"),
			WantMatch:    true,
			WantDecision: hook.DecisionDeny,
		},
		{
			Name:         "denies short force flag",
			Event:        bash("git push -f origin master"),
			WantMatch:    true,
			WantDecision: hook.DecisionDeny,
		},
		{
			Name:         "denies force push hidden in a chain",
			Event:        bash("git fetch && git push --force origin main"),
			WantMatch:    true,
			WantDecision: hook.DecisionDeny,
		},
		{
			Name:         "allows regular push",
			Event:        bash("git push origin main"),
			WantMatch:    true,
			WantDecision: hook.DecisionAllow,
		},
		{
			Name:         "allows force push to feature branch",
			Event:        bash("git push --force origin feature/retry"),
			WantMatch:    true,
			WantDecision: hook.DecisionAllow,
		},
		{
			Name:      "ignores non-git commands",
			Event:     bash("ls -la"),
			WantMatch: false,
		},
	}
}
