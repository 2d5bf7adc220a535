package handlers

import (
	"context"
	"fmt"

	"github.com/smykla-labs/hookd/internal/procctx"
	"github.com/smykla-labs/hookd/internal/registry"
	"github.com/smykla-labs/hookd/pkg/handler"
	"github.com/smykla-labs/hookd/pkg/hook"
)

// SessionBrief injects project context at session start. Non-terminal:
// its decision is never consulted, it only contributes advisory context.
type SessionBrief struct {
	handler.Base

	pctx *procctx.Context
}

// NewSessionBrief constructs the handler.
//
//nolint:ireturn // registry factory contract
func NewSessionBrief(deps registry.Deps) (handler.Handler, error) {
	return &SessionBrief{
		Base: handler.NewBase(handler.Descriptor{
			Key:      KeySessionBrief,
			Priority: prioritySessionBrief,
			Terminal: false,
			Tags:     []string{"session", "advisory"},
		}, deps.Log),
		pctx: deps.ProcCtx,
	}, nil
}

// Matches applies to every session start.
func (h *SessionBrief) Matches(event *hook.Event) bool {
	return event.Type == hook.EventTypeSessionStart
}

// Handle contributes the project brief.
func (h *SessionBrief) Handle(_ context.Context, _ *hook.Event) (*handler.Result, error) {
	brief := fmt.Sprintf(
		"hookd is guarding %s. Force pushes to protected branches and "+
			"destructive shell commands are policed before they run.",
		h.project())

	return handler.Advise(brief), nil
}

func (h *SessionBrief) project() string {
	if h.pctx == nil {
		return "this project"
	}

	return h.pctx.RepoIdentity
}

// TestCases declares the handler's acceptance cases.
func (h *SessionBrief) TestCases() []handler.TestCase {
	return []handler.TestCase{
		{
			Name:         "briefs on session start",
			Event:        &hook.Event{Type: hook.EventTypeSessionStart},
			WantMatch:    true,
			WantDecision: hook.DecisionAllow,
		},
		{
			Name:      "ignores other events",
			Event:     &hook.Event{Type: hook.EventTypePreToolUse, ToolName: "Bash"},
			WantMatch: false,
		},
	}
}
