// Package response translates canonical chain results into the
// event-type-specific JSON shapes the hook client expects.
package response

import (
	"strings"

	"github.com/smykla-labs/hookd/pkg/hook"
)

// Envelope is the top-level JSON structure returned over the socket.
// Which fields are populated depends on the event type; the zero envelope
// marshals to {} which the client treats as a clean allow.
type Envelope struct {
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
	SystemMessage      string              `json:"systemMessage,omitempty"`

	// Decision and Reason are the top-level shape used by Stop and
	// PostToolUse events, which have no permission phase.
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// HookSpecificOutput carries the permission decision and advisory context.
type HookSpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision,omitempty"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
	AdditionalContext        string `json:"additionalContext,omitempty"`
}

// Translate maps a chain result to the wire envelope for one event type.
// The canonical decision never changes here; only its serialized shape
// does.
func Translate(event hook.EventType, result hook.ChainResult) *Envelope {
	switch event {
	case hook.EventTypePreToolUse:
		return translatePermission(event, result)
	case hook.EventTypePostToolUse, hook.EventTypeStop:
		return translateBlocking(result)
	case hook.EventTypeSessionStart, hook.EventTypeNotification:
		return translateAdvisory(event, result)
	default:
		return translatePermission(event, result)
	}
}

// translatePermission builds the permission-phase shape: an explicit
// allow/deny/ask decision plus accumulated context.
func translatePermission(event hook.EventType, result hook.ChainResult) *Envelope {
	out := &HookSpecificOutput{
		HookEventName:      string(event),
		PermissionDecision: string(result.Decision),
		AdditionalContext:  joinContext(result.Context),
	}

	env := &Envelope{HookSpecificOutput: out}

	if result.Decision.Blocks() {
		out.PermissionDecisionReason = result.Reason
		env.SystemMessage = result.Reason
	}

	return env
}

// translateBlocking builds the post-hoc shape: no permission phase, only
// an optional block with a reason.
func translateBlocking(result hook.ChainResult) *Envelope {
	env := &Envelope{}

	if result.Decision.Blocks() {
		env.Decision = "block"
		env.Reason = result.Reason
	}

	if ctx := joinContext(result.Context); ctx != "" {
		env.SystemMessage = ctx
	}

	return env
}

// translateAdvisory builds the context-only shape used by events that
// cannot block.
func translateAdvisory(event hook.EventType, result hook.ChainResult) *Envelope {
	ctx := joinContext(result.Context)
	if ctx == "" {
		return &Envelope{}
	}

	return &Envelope{
		HookSpecificOutput: &HookSpecificOutput{
			HookEventName:     string(event),
			AdditionalContext: ctx,
		},
	}
}

func joinContext(parts []string) string {
	if len(parts) == 0 {
		return ""
	}

	return strings.Join(parts, "\n")
}
