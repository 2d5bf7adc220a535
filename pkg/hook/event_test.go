package hook_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-labs/hookd/pkg/hook"
)

var _ = Describe("ParseEventType", func() {
	It("parses every dispatchable event type", func() {
		for _, et := range hook.DispatchableEventTypes() {
			parsed, err := hook.ParseEventType(et.String())

			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(et))
		}
	})

	It("parses Status even though it is not dispatchable", func() {
		parsed, err := hook.ParseEventType("Status")

		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(Equal(hook.EventTypeStatus))
		Expect(hook.DispatchableEventTypes()).NotTo(ContainElement(hook.EventTypeStatus))
	})

	It("rejects unknown names, naming the offender", func() {
		_, err := hook.ParseEventType("pretooluse")

		Expect(err).To(MatchError(hook.ErrUnknownEventType))
		Expect(err.Error()).To(ContainSubstring("pretooluse"))
	})
})

var _ = Describe("Event", func() {
	It("decodes the agent wire shape", func() {
		payload := `{
			"hook_event_name": "PreToolUse",
			"tool_name": "Bash",
			"tool_input": {"command": "git push -f"},
			"session_id": "s-1",
			"cwd": "/work/project"
		}`

		var event hook.Event
		Expect(json.Unmarshal([]byte(payload), &event)).To(Succeed())

		Expect(event.Type).To(Equal(hook.EventTypePreToolUse))
		Expect(event.IsBashTool()).To(BeTrue())
		Expect(event.GetCommand()).To(Equal("git push -f"))
		Expect(event.CWD).To(Equal("/work/project"))
	})

	It("keeps unmodeled keys in Extra", func() {
		payload := `{
			"hook_event_name": "PreToolUse",
			"tool_name": "Bash",
			"permission_mode": "acceptEdits",
			"custom": {"nested": true}
		}`

		var event hook.Event
		Expect(json.Unmarshal([]byte(payload), &event)).To(Succeed())

		Expect(event.Extra).To(HaveKey("permission_mode"))
		Expect(string(event.Extra["permission_mode"])).To(Equal(`"acceptEdits"`))
		Expect(event.Extra).To(HaveKey("custom"))
		Expect(event.Extra).NotTo(HaveKey("tool_name"))
		Expect(event.ToolName).To(Equal("Bash"))
	})

	It("leaves Extra nil when every key is modeled", func() {
		payload := `{"hook_event_name": "Notification", "notification_type": "info"}`

		var event hook.Event
		Expect(json.Unmarshal([]byte(payload), &event)).To(Succeed())

		Expect(event.Extra).To(BeNil())
	})

	It("prefers file_path over path", func() {
		event := &hook.Event{
			ToolInput: hook.ToolInput{FilePath: "/a", Path: "/b"},
		}

		Expect(event.GetFilePath()).To(Equal("/a"))

		event.ToolInput.FilePath = ""
		Expect(event.GetFilePath()).To(Equal("/b"))
	})

	It("classifies file mutation tools", func() {
		for _, tool := range []string{"Write", "Edit", "MultiEdit"} {
			event := &hook.Event{ToolName: tool}
			Expect(event.IsFileTool()).To(BeTrue(), tool)
		}

		Expect((&hook.Event{ToolName: "Read"}).IsFileTool()).To(BeFalse())
		Expect((&hook.Event{ToolName: "Bash"}).IsFileTool()).To(BeFalse())
	})
})
