// Package handlers contains the built-in policy handlers and the table
// that registers them with the registry.
package handlers

import (
	"github.com/smykla-labs/hookd/internal/registry"
	"github.com/smykla-labs/hookd/pkg/hook"
)

// Built-in handler keys. Each key maps 1:1 to a configuration entry.
const (
	KeyGitForcePush     = "git-force-push"
	KeyShellDanger      = "shell-danger"
	KeyShellDangerPaths = "shell-danger-paths"
	KeySessionBrief     = "session-brief"
)

// Default chain priorities. Lower runs earlier.
const (
	priorityGitForcePush     = 10
	priorityShellDanger      = 20
	priorityShellDangerPaths = 30
	prioritySessionBrief     = 100
)

// Builtins returns the compile-time handler class table.
func Builtins() map[string]registry.Builtin {
	return map[string]registry.Builtin{
		KeyGitForcePush: {
			Event: hook.EventTypePreToolUse,
			New:   NewGitForcePush,
		},
		KeyShellDanger: {
			Event: hook.EventTypePreToolUse,
			New:   NewShellDanger,
		},
		KeyShellDangerPaths: {
			Event:             hook.EventTypePreToolUse,
			SharesOptionsWith: KeyShellDanger,
			New:               NewShellDangerPaths,
		},
		KeySessionBrief: {
			Event: hook.EventTypeSessionStart,
			New:   NewSessionBrief,
		},
	}
}
