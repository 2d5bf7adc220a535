// Package hook provides core types for agent hook events and decisions.
package hook

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// EventType represents the type of hook event.
type EventType string

const (
	// EventTypeUnknown represents an unrecognized event type.
	EventTypeUnknown EventType = ""

	// EventTypePreToolUse is triggered before a tool is executed.
	EventTypePreToolUse EventType = "PreToolUse"

	// EventTypePostToolUse is triggered after a tool has executed.
	EventTypePostToolUse EventType = "PostToolUse"

	// EventTypeSessionStart is triggered when an agent session begins.
	EventTypeSessionStart EventType = "SessionStart"

	// EventTypeStop is triggered when the agent finishes responding.
	EventTypeStop EventType = "Stop"

	// EventTypeNotification is triggered for user notifications.
	EventTypeNotification EventType = "Notification"

	// EventTypeStatus is reserved for daemon health queries over the socket.
	// It never reaches the dispatch engine.
	EventTypeStatus EventType = "Status"
)

// ErrUnknownEventType is returned when an event type cannot be parsed.
var ErrUnknownEventType = errors.New("unknown event type")

// knownEventTypes lists every event type a chain can be registered for.
var knownEventTypes = []EventType{
	EventTypePreToolUse,
	EventTypePostToolUse,
	EventTypeSessionStart,
	EventTypeStop,
	EventTypeNotification,
}

// ParseEventType converts a wire string into an EventType.
func ParseEventType(s string) (EventType, error) {
	if s == string(EventTypeStatus) {
		return EventTypeStatus, nil
	}

	for _, et := range knownEventTypes {
		if s == string(et) {
			return et, nil
		}
	}

	return EventTypeUnknown, errors.Wrapf(ErrUnknownEventType, "%q", s)
}

// DispatchableEventTypes returns the event types chains can be built for.
func DispatchableEventTypes() []EventType {
	out := make([]EventType, len(knownEventTypes))
	copy(out, knownEventTypes)

	return out
}

// String returns the wire representation of the event type.
func (e EventType) String() string {
	return string(e)
}

// ToolInput contains the tool-specific input fields of an event.
type ToolInput struct {
	// Command is the shell command for the Bash tool.
	Command string `json:"command,omitempty"`

	// FilePath is the file path for file operations.
	FilePath string `json:"file_path,omitempty"`

	// Path is an alternative field for file path.
	Path string `json:"path,omitempty"`

	// Content is the file content for the Write tool.
	Content string `json:"content,omitempty"`

	// OldString is the string to replace for the Edit tool.
	OldString string `json:"old_string,omitempty"`

	// NewString is the replacement string for the Edit tool.
	NewString string `json:"new_string,omitempty"`

	// Pattern is the search pattern for Grep/Glob tools.
	Pattern string `json:"pattern,omitempty"`
}

// Event is the immutable, read-only view of one hook invocation.
// It is decoded once per connection and shared by reference with every
// handler in the chain; handlers must never mutate it.
type Event struct {
	// Type is the event type discriminator.
	Type EventType `json:"hook_event_name"`

	// ToolName is the name of the tool being invoked, when applicable.
	ToolName string `json:"tool_name,omitempty"`

	// ToolInput contains the tool-specific input parameters.
	ToolInput ToolInput `json:"tool_input,omitempty"`

	// SessionID is the unique identifier for the agent session.
	SessionID string `json:"session_id,omitempty"`

	// TranscriptPath is the path to the session transcript file.
	TranscriptPath string `json:"transcript_path,omitempty"`

	// CWD is the working directory the agent reported for this event.
	CWD string `json:"cwd,omitempty"`

	// StopHookActive indicates the agent was already re-invoked after a
	// blocking Stop decision; handlers use it to avoid loops.
	StopHookActive bool `json:"stop_hook_active,omitempty"`

	// NotificationType is the notification category for Notification events.
	NotificationType string `json:"notification_type,omitempty"`

	// Extra holds event fields that have no first-class accessor.
	Extra map[string]json.RawMessage `json:"-"`
}

// modeledEventKeys are the wire keys with first-class Event fields.
var modeledEventKeys = []string{
	"hook_event_name",
	"tool_name",
	"tool_input",
	"session_id",
	"transcript_path",
	"cwd",
	"stop_hook_active",
	"notification_type",
}

// UnmarshalJSON decodes the modeled fields and keeps every unknown key in
// Extra, so forwarded fields the daemon does not model survive for
// handlers that know what to do with them.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event

	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return errors.Wrap(err, "failed to decode event")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "failed to decode event fields")
	}

	for _, key := range modeledEventKeys {
		delete(raw, key)
	}

	if len(raw) > 0 {
		decoded.Extra = raw
	}

	*e = Event(decoded)

	return nil
}

// GetCommand returns the shell command from the tool input.
func (e *Event) GetCommand() string {
	return e.ToolInput.Command
}

// GetFilePath returns the file path, preferring FilePath over Path.
func (e *Event) GetFilePath() string {
	if e.ToolInput.FilePath != "" {
		return e.ToolInput.FilePath
	}

	return e.ToolInput.Path
}

// GetContent returns the file content from the tool input.
func (e *Event) GetContent() string {
	return e.ToolInput.Content
}

// IsBashTool returns true if the event's tool is Bash.
func (e *Event) IsBashTool() bool {
	return e.ToolName == "Bash"
}

// IsFileTool returns true for file mutation tools (Write, Edit, MultiEdit).
func (e *Event) IsFileTool() bool {
	switch e.ToolName {
	case "Write", "Edit", "MultiEdit":
		return true
	default:
		return false
	}
}
